package domain

import (
	"strings"
	"sync"
	"time"
)

// TargetNetworkID es la red del ledger (61999 / 0xf22f).
const TargetNetworkID uint64 = 61999

// Stopper es cualquier tarea programada que la sesión debe detener al invalidarse.
type Stopper interface {
	Stop()
}

// Session is the explicit context every remote call runs under.
// It replaces global connection state: components receive the session,
// check Valid before applying results, and attach their background tasks
// so that Invalidate stops them synchronously.
type Session struct {
	AccountID  string
	ContractID string
	NetworkID  uint64
	StartedAt  time.Time

	mu        sync.Mutex
	invalid   bool
	networkOK bool
	tasks     []Stopper
}

// NewSession crea una sesión válida sobre networkID; targetID es la red esperada.
func NewSession(accountID, contractID string, networkID, targetID uint64) *Session {
	return &Session{
		AccountID:  accountID,
		ContractID: contractID,
		NetworkID:  networkID,
		StartedAt:  time.Now().UTC(),
		networkOK:  networkID == targetID,
	}
}

// NetworkOK reports whether the session runs on the target network.
func (s *Session) NetworkOK() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.networkOK && !s.invalid
}

// Valid reports whether the session is still live.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.invalid
}

// RequireReadable falla rápido si falta cuenta o contrato, antes de cualquier llamada remota.
func (s *Session) RequireReadable() error {
	if s == nil || !s.Valid() || strings.TrimSpace(s.AccountID) == "" {
		return ErrNotConnected
	}
	if strings.TrimSpace(s.ContractID) == "" {
		return ErrContractNotConfigured
	}
	return nil
}

// RequireWritable además exige la red correcta.
func (s *Session) RequireWritable() error {
	if err := s.RequireReadable(); err != nil {
		return err
	}
	if !s.NetworkOK() {
		return ErrWrongNetwork
	}
	return nil
}

// Attach ata una tarea a la sesión. Si la sesión ya es inválida la tarea se detiene enseguida.
func (s *Session) Attach(t Stopper) {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		t.Stop()
		return
	}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// Invalidate ends the session and stops every attached task before returning.
// Calling it more than once is a no-op.
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return
	}
	s.invalid = true
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

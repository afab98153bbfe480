package domain

import (
	"strconv"
	"strings"
	"time"
)

// TxHandle identifica una transacción enviada al ledger (hash 0x...).
type TxHandle string

// TxStatus is the consensus status reported by the remote ledger.
type TxStatus string

const (
	TxStatusUninitialized     TxStatus = "UNINITIALIZED"
	TxStatusPending           TxStatus = "PENDING"
	TxStatusProposing         TxStatus = "PROPOSING"
	TxStatusCommitting        TxStatus = "COMMITTING"
	TxStatusRevealing         TxStatus = "REVEALING"
	TxStatusAccepted          TxStatus = "ACCEPTED"
	TxStatusUndetermined      TxStatus = "UNDETERMINED"
	TxStatusFinalized         TxStatus = "FINALIZED"
	TxStatusCanceled          TxStatus = "CANCELED"
	TxStatusAppealed          TxStatus = "APPEALED"
	TxStatusLeaderTimeout     TxStatus = "LEADER_TIMEOUT"
	TxStatusValidatorsTimeout TxStatus = "VALIDATORS_TIMEOUT"
	TxStatusReadyToFinalize   TxStatus = "READY_TO_FINALIZE"
)

// statusByCode: algunos nodos devuelven el status como código numérico.
var statusByCode = []TxStatus{
	TxStatusUninitialized,
	TxStatusPending,
	TxStatusProposing,
	TxStatusCommitting,
	TxStatusRevealing,
	TxStatusAccepted,
	TxStatusUndetermined,
	TxStatusFinalized,
	TxStatusCanceled,
	TxStatusAppealed,
	TxStatusLeaderTimeout,
	TxStatusValidatorsTimeout,
	TxStatusReadyToFinalize,
}

// ParseTxStatus acepta el nombre del status o su código numérico.
// Un valor desconocido se trata como PENDING.
func ParseTxStatus(s string) TxStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n < len(statusByCode) {
			return statusByCode[n]
		}
		return TxStatusPending
	}
	for _, st := range statusByCode {
		if string(st) == s {
			return st
		}
	}
	if s == "CANCELLED" {
		return TxStatusCanceled
	}
	return TxStatusPending
}

// IsSuccess reports a terminal success status.
func (s TxStatus) IsSuccess() bool {
	return s == TxStatusAccepted || s == TxStatusFinalized
}

// IsFailure reports a terminal failure status.
func (s TxStatus) IsFailure() bool {
	switch s {
	case TxStatusUndetermined, TxStatusCanceled, TxStatusLeaderTimeout, TxStatusValidatorsTimeout:
		return true
	}
	return false
}

// IsTerminal: success o failure.
func (s TxStatus) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

// TxReport es una respuesta de status para un handle.
type TxReport struct {
	Handle TxHandle
	Status TxStatus
	Reason string // motivo remoto en caso de fallo
	Raw    any    // árbol JSON decodificado del objeto de la transacción
}

// Receipt es el resultado de una transacción que llegó a finalidad con éxito.
// Raw conserva el árbol completo para el extractor de settlement.
type Receipt struct {
	Handle      TxHandle
	Status      TxStatus
	Raw         any
	FinalizedAt time.Time
	Attempts    int
}

// PendingTransaction is owned by the finality poller for the duration of one wait.
type PendingTransaction struct {
	Handle      TxHandle
	Kind        string // deposit | place | settle
	AccountID   string
	SubmittedAt time.Time
	Status      TxStatus
}

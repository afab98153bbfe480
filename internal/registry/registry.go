// Package registry holds the local view of the user's predictions and
// reconciles it against the rows reported by the contract.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

const maxDiagnostics = 100

// Diagnostic registra una fila remota descartada o en conflicto.
type Diagnostic struct {
	Row    string
	Reason string
	At     time.Time
}

// MergeReport resume qué hizo un merge.
type MergeReport struct {
	Accepted          int
	Dropped           int
	Added             []uint64
	ReadyDisagreement []uint64
}

// Registry es el conjunto local de predicciones, indexado por id.
// Es seguro para uso concurrente; los merges son idempotentes.
type Registry struct {
	mu          sync.RWMutex
	byID        map[uint64]*domain.Prediction
	active      map[uint64]struct{}
	summary     domain.PredictionSummary
	diagnostics []Diagnostic
	now         func() time.Time
	logger      *slog.Logger
}

// New crea un registry vacío.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:   make(map[uint64]*domain.Prediction),
		active: make(map[uint64]struct{}),
		now:    time.Now,
		logger: logger,
	}
}

// Merge reconciles the registry with a fresh summary and active row set.
//
// Malformed rows are dropped with a diagnostic. Terminal outcomes are never
// reverted, and the terms of an id already known are never rewritten.
// Ready is derived from remoteNow (local clock if zero); when it disagrees
// with the remote flag the disagreement is logged and the remote flag is
// what CanSettle uses. Predictions missing from rows leave the active view
// but stay reachable through Get.
func (r *Registry) Merge(summary domain.PredictionSummary, rows []string, remoteNow time.Time) MergeReport {
	if remoteNow.IsZero() {
		remoteNow = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var rep MergeReport
	seen := make(map[uint64]struct{}, len(rows))

	for _, row := range rows {
		p, err := ParseRow(row)
		if err != nil {
			rep.Dropped++
			r.diagnoseLocked(row, err.Error())
			continue
		}
		if _, dup := seen[p.ID]; dup {
			rep.Dropped++
			r.diagnoseLocked(row, "duplicate id in response")
			continue
		}
		seen[p.ID] = struct{}{}
		rep.Accepted++

		p.Ready = !remoteNow.Before(p.ExpiryTime)
		if p.Ready != p.RemoteReady {
			rep.ReadyDisagreement = append(rep.ReadyDisagreement, p.ID)
			r.logger.Warn("registry: ready flag disagreement",
				"id", p.ID, "remote_ready", p.RemoteReady, "local_ready", p.Ready,
				"expiry", p.ExpiryTime, "remote_now", remoteNow)
		}

		existing, ok := r.byID[p.ID]
		if !ok {
			p.UpdatedAt = remoteNow
			r.byID[p.ID] = &p
			rep.Added = append(rep.Added, p.ID)
			continue
		}
		if !existing.SameTerms(p) {
			r.diagnoseLocked(row, "terms differ from known prediction; keeping original")
		}
		existing.ExpiryTime = p.ExpiryTime
		existing.Ready = p.Ready
		existing.RemoteReady = p.RemoteReady
		existing.UpdatedAt = remoteNow
	}

	r.active = seen
	r.summary = summary
	return rep
}

func (r *Registry) diagnoseLocked(row, reason string) {
	r.logger.Warn("registry: bad row", "row", row, "reason", reason)
	r.diagnostics = append(r.diagnostics, Diagnostic{Row: row, Reason: reason, At: r.now().UTC()})
	if len(r.diagnostics) > maxDiagnostics {
		r.diagnostics = r.diagnostics[len(r.diagnostics)-maxDiagnostics:]
	}
}

// GetActive devuelve las predicciones activas no terminales, ordenadas por id.
func (r *Registry) GetActive() []domain.Prediction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Prediction, 0, len(r.active))
	for id := range r.active {
		p := r.byID[id]
		if p == nil || p.Outcome.IsTerminal() {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get devuelve una predicción por id, activa o no.
func (r *Registry) Get(id uint64) (domain.Prediction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Prediction{}, false
	}
	return *p, true
}

// ApplyOutcome registra el outcome de un settle. Si el id no se conocía se
// crea una entrada mínima para que el outcome quede accesible.
// Devuelve false si la predicción ya era terminal.
func (r *Registry) ApplyOutcome(id uint64, outcome domain.Outcome, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		p = &domain.Prediction{ID: id, Outcome: domain.OutcomePending}
		r.byID[id] = p
	}
	if !p.ApplyOutcome(outcome, message) {
		r.logger.Debug("registry: outcome already terminal", "id", id, "outcome", p.Outcome, "ignored", outcome)
		return false
	}
	p.UpdatedAt = r.now().UTC()
	return true
}

// Summary devuelve el último resumen recibido.
func (r *Registry) Summary() domain.PredictionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary
}

// Diagnostics devuelve una copia de las filas descartadas recientes.
func (r *Registry) Diagnostics() []Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}

// Reset vacía el registry. Se usa al cerrar la sesión: no se cachea estado entre sesiones.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[uint64]*domain.Prediction)
	r.active = make(map[uint64]struct{})
	r.summary = domain.PredictionSummary{}
	r.diagnostics = nil
}

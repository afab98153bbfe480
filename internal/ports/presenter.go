package ports

import (
	"context"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// Presenter muestra el estado al usuario. Las implementaciones no deben bloquear.
type Presenter interface {
	SessionStatus(ctx context.Context, ev domain.SessionStatusEvent)
	RegistrySnapshot(ctx context.Context, snap domain.RegistrySnapshot)
	SettlementOutcome(ctx context.Context, ev domain.SettlementEvent)
	FieldUpdate(ctx context.Context, upd domain.FieldUpdate)
}

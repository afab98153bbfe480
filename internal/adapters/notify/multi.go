package notify

import (
	"context"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/ports"
)

// Multi reparte cada evento a varios presenters, en orden.
type Multi []ports.Presenter

// NewMulti ignora los presenters nil.
func NewMulti(ps ...ports.Presenter) Multi {
	out := make(Multi, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m Multi) SessionStatus(ctx context.Context, ev domain.SessionStatusEvent) {
	for _, p := range m {
		p.SessionStatus(ctx, ev)
	}
}

func (m Multi) RegistrySnapshot(ctx context.Context, snap domain.RegistrySnapshot) {
	for _, p := range m {
		p.RegistrySnapshot(ctx, snap)
	}
}

func (m Multi) SettlementOutcome(ctx context.Context, ev domain.SettlementEvent) {
	for _, p := range m {
		p.SettlementOutcome(ctx, ev)
	}
}

func (m Multi) FieldUpdate(ctx context.Context, upd domain.FieldUpdate) {
	for _, p := range m {
		p.FieldUpdate(ctx, upd)
	}
}

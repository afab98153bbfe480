package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// Journal is the local audit log of writes issued by this client.
// It is never read back to seed session state.
type Journal interface {
	// RecordSubmitted registra una transacción recién enviada y devuelve su id local.
	RecordSubmitted(ctx context.Context, tx domain.PendingTransaction, detail string) (string, error)

	// RecordFinal marca el resultado terminal (o el error) de una transacción.
	RecordFinal(ctx context.Context, handle domain.TxHandle, status domain.TxStatus, errMsg string) error

	// RecordSettlement guarda el outcome clasificado de un settle.
	RecordSettlement(ctx context.Context, ev domain.SettlementEvent) error

	// History devuelve las entradas enviadas en el rango dado, más recientes primero.
	History(ctx context.Context, from, to time.Time) ([]domain.JournalEntry, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

package ports

import (
	"context"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// ContractReader exposes the contract read methods. Results are returned
// raw, exactly as the remote side encoded them; callers run them through
// the normalizer.
type ContractReader interface {
	CurrentTime(ctx context.Context) (any, error)
	CurrentPrice(ctx context.Context, symbol string) (any, error)
	Balance(ctx context.Context, account string) (any, error)
	PredictionDetails(ctx context.Context, id uint64) (any, error)
	UserPredictions(ctx context.Context, account string) (any, error)
	UserActivePredictions(ctx context.Context, account string) (any, error)
	Leaderboard(ctx context.Context) (any, error)
	GameStats(ctx context.Context) (any, error)
}

// ContractWriter envía transacciones firmadas. Cada método devuelve el handle
// en cuanto el ledger acepta el envío; la finalidad se espera aparte.
type ContractWriter interface {
	Deposit(ctx context.Context, amount int64) (domain.TxHandle, error)
	PlacePrediction(ctx context.Context, symbol string, dir domain.Direction, amount int64, durationSeconds int64) (domain.TxHandle, error)
	SettlePrediction(ctx context.Context, id uint64) (domain.TxHandle, error)
}

// Contract es un contrato ligado a una cuenta.
type Contract interface {
	ContractReader
	ContractWriter
}

// ContractDialer liga el contrato configurado a la cuenta de la sesión.
type ContractDialer interface {
	Bind(contractID, accountID string) (Contract, error)
}

// TransactionStatusSource consulta el estado de consenso de una transacción.
type TransactionStatusSource interface {
	TransactionStatus(ctx context.Context, handle domain.TxHandle) (domain.TxReport, error)
}

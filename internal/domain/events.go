package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState es el estado de conexión que se muestra al usuario.
type SessionState string

const (
	SessionConnected           SessionState = "CONNECTED"
	SessionDisconnected        SessionState = "DISCONNECTED"
	SessionWrongNetwork        SessionState = "WRONG_NETWORK"
	SessionProviderUnavailable SessionState = "PROVIDER_UNAVAILABLE"
)

// SessionStatusEvent se emite en cada cambio de estado de la sesión.
type SessionStatusEvent struct {
	State     SessionState `json:"state"`
	AccountID string       `json:"account_id,omitempty"`
	NetworkID uint64       `json:"network_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	At        time.Time    `json:"at"`
}

// ActivePrediction is an active prediction enriched with the live price.
type ActivePrediction struct {
	Prediction      Prediction      `json:"prediction"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	Standing        Standing        `json:"standing"`
	ChangePct       decimal.Decimal `json:"change_pct"`
	PotentialPayout int64           `json:"potential_payout"`
	TimeLeft        time.Duration   `json:"time_left"`
}

// RegistrySnapshot es la vista de predicciones después de un merge.
type RegistrySnapshot struct {
	Summary    PredictionSummary  `json:"summary"`
	Stats      UserStats          `json:"stats"`
	Active     []ActivePrediction `json:"active"`
	RemoteTime time.Time          `json:"remote_time"`
	At         time.Time          `json:"at"`
}

// SettlementEvent es el resultado clasificado de un settle.
type SettlementEvent struct {
	PredictionID uint64    `json:"prediction_id"`
	Outcome      Outcome   `json:"outcome"`
	Message      string    `json:"message"`
	Rule         string    `json:"rule"`
	Handle       TxHandle  `json:"handle"`
	At           time.Time `json:"at"`
}

// Field names used by FieldUpdate.
const (
	FieldBalance     = "balance"
	FieldPrice       = "price"
	FieldStats       = "stats"
	FieldLeaderboard = "leaderboard"
	FieldGameStats   = "game_stats"
	FieldPredictions = "predictions"
)

// FieldUpdate publica un único campo de la vista. Si el fetch falló,
// Value es nil y Placeholder explica qué mostrar.
type FieldUpdate struct {
	Field       string    `json:"field"`
	Value       any       `json:"value,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	At          time.Time `json:"at"`
}

// WalletEventKind distingue los eventos del proveedor de identidad.
type WalletEventKind string

const (
	WalletAccountsChanged WalletEventKind = "ACCOUNTS_CHANGED"
	WalletNetworkChanged  WalletEventKind = "NETWORK_CHANGED"
)

// WalletEvent es un cambio de cuentas o de red notificado por el wallet.
type WalletEvent struct {
	Kind      WalletEventKind
	Accounts  []string
	NetworkID uint64
}

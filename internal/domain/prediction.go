package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction es el sentido apostado por una predicción.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// ParseDirection acepta "UP"/"DOWN" sin distinguir mayúsculas.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionUp:
		return DirectionUp, true
	case DirectionDown:
		return DirectionDown, true
	}
	return "", false
}

// Outcome is the resolution state of a prediction.
// PENDING is the only non-terminal value.
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeWon     Outcome = "WON"
	OutcomeLost    Outcome = "LOST"
	OutcomeUnknown Outcome = "UNKNOWN"
)

// IsTerminal reports whether the outcome can no longer change.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeWon || o == OutcomeLost || o == OutcomeUnknown
}

// Standing es la posición provisional de una predicción activa frente al precio actual.
type Standing string

const (
	StandingWinning Standing = "WINNING"
	StandingLosing  Standing = "LOSING"
	StandingUnknown Standing = "UNKNOWN"
)

// payoutMultiplier replica el pago del contrato: 1.8x el stake.
var payoutMultiplier = decimal.RequireFromString("1.8")

// Prediction es un contrato de predicción con vencimiento registrado en el ledger remoto.
type Prediction struct {
	ID          uint64
	Symbol      string
	Direction   Direction
	Stake       int64
	EntryPrice  decimal.Decimal // USD, ya en dólares
	ExpiryTime  time.Time
	Ready       bool // derivado localmente: hora remota >= ExpiryTime
	RemoteReady bool // flag READY/WAITING reportado por el contrato
	Outcome     Outcome
	Message     string // mensaje de settlement, si existe
	UpdatedAt   time.Time
}

// SameTerms reports whether the immutable fields of both predictions match.
func (p Prediction) SameTerms(o Prediction) bool {
	return p.ID == o.ID &&
		p.Symbol == o.Symbol &&
		p.Direction == o.Direction &&
		p.Stake == o.Stake &&
		p.EntryPrice.Equal(o.EntryPrice)
}

// ApplyOutcome mueve la predicción a un outcome terminal.
// Devuelve false si ya era terminal o si el outcome pedido no lo es: el outcome es monotónico.
func (p *Prediction) ApplyOutcome(o Outcome, message string) bool {
	if p.Outcome.IsTerminal() || !o.IsTerminal() {
		return false
	}
	p.Outcome = o
	p.Message = message
	return true
}

// CanSettle: el flag remoto manda sobre la derivación local.
func (p Prediction) CanSettle() bool {
	return !p.Outcome.IsTerminal() && p.RemoteReady
}

// TimeLeft devuelve el tiempo restante hasta el vencimiento respecto a now (nunca negativo).
func (p Prediction) TimeLeft(now time.Time) time.Duration {
	d := p.ExpiryTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Standing evalúa la predicción contra el precio actual.
// Igual que el contrato, un precio sin cambio cuenta como bajada.
func (p Prediction) Standing(current decimal.Decimal) Standing {
	if current.IsZero() || p.EntryPrice.IsZero() {
		return StandingUnknown
	}
	up := current.GreaterThan(p.EntryPrice)
	if (up && p.Direction == DirectionUp) || (!up && p.Direction == DirectionDown) {
		return StandingWinning
	}
	return StandingLosing
}

// PriceChangePct devuelve el cambio porcentual desde la entrada, redondeado a 2 decimales.
func (p Prediction) PriceChangePct(current decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return current.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100)).Round(2)
}

// PotentialPayout es floor(stake * 1.8).
func (p Prediction) PotentialPayout() int64 {
	return decimal.NewFromInt(p.Stake).Mul(payoutMultiplier).Floor().IntPart()
}

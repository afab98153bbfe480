package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func btc(dir Direction, entry int64) Prediction {
	return Prediction{
		ID:         1,
		Symbol:     "BTC",
		Direction:  dir,
		Stake:      50,
		EntryPrice: decimal.NewFromInt(entry),
		Outcome:    OutcomePending,
	}
}

func TestStanding(t *testing.T) {
	tests := []struct {
		name    string
		dir     Direction
		current int64
		want    Standing
	}{
		{"up and price rose", DirectionUp, 96000, StandingWinning},
		{"up and price fell", DirectionUp, 94000, StandingLosing},
		{"down and price fell", DirectionDown, 94000, StandingWinning},
		{"down and price rose", DirectionDown, 96000, StandingLosing},
		{"unchanged price favours down", DirectionDown, 95000, StandingWinning},
		{"unchanged price loses for up", DirectionUp, 95000, StandingLosing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := btc(tt.dir, 95000)
			assert.Equal(t, tt.want, p.Standing(decimal.NewFromInt(tt.current)))
		})
	}
}

func TestStanding_NoPrice(t *testing.T) {
	assert.Equal(t, StandingUnknown, btc(DirectionUp, 95000).Standing(decimal.Zero))
}

func TestApplyOutcome_Monotonic(t *testing.T) {
	p := btc(DirectionUp, 95000)

	assert.False(t, p.ApplyOutcome(OutcomePending, ""), "pending is not a terminal outcome")
	assert.True(t, p.ApplyOutcome(OutcomeWon, "WON: BTC"))
	assert.Equal(t, OutcomeWon, p.Outcome)

	assert.False(t, p.ApplyOutcome(OutcomeLost, "LOST: BTC"))
	assert.Equal(t, OutcomeWon, p.Outcome)
	assert.Equal(t, "WON: BTC", p.Message)
}

func TestCanSettle_UsesRemoteFlag(t *testing.T) {
	p := btc(DirectionUp, 95000)
	p.Ready = true
	assert.False(t, p.CanSettle())

	p.RemoteReady = true
	p.Ready = false
	assert.True(t, p.CanSettle())

	p.ApplyOutcome(OutcomeLost, "")
	assert.False(t, p.CanSettle())
}

func TestPotentialPayout(t *testing.T) {
	p := btc(DirectionUp, 95000)
	assert.Equal(t, int64(90), p.PotentialPayout())

	p.Stake = 15
	assert.Equal(t, int64(27), p.PotentialPayout())

	p.Stake = 11
	assert.Equal(t, int64(19), p.PotentialPayout()) // 19.8 → 19
}

func TestPriceChangePct(t *testing.T) {
	p := btc(DirectionUp, 95000)
	got := p.PriceChangePct(decimal.NewFromInt(96900))
	assert.True(t, got.Equal(decimal.NewFromInt(2)), got.String())
}

func TestTimeLeft(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := btc(DirectionUp, 95000)
	p.ExpiryTime = now.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, p.TimeLeft(now))
	assert.Equal(t, time.Duration(0), p.TimeLeft(now.Add(time.Hour)))
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" up ")
	assert.True(t, ok)
	assert.Equal(t, DirectionUp, d)

	_, ok = ParseDirection("SIDEWAYS")
	assert.False(t, ok)
}

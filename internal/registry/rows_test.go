package registry

import (
	"testing"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRows(t *testing.T) {
	assert.Nil(t, SplitRows("NONE"))
	assert.Nil(t, SplitRows("  "))
	assert.Equal(t, []string{"a", "b"}, SplitRows("a;;b;;"))
}

func TestParseRow(t *testing.T) {
	p, err := ParseRow("7|btc|down|25|64250.75|2025-01-02T03:04:05Z|READY")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.ID)
	assert.Equal(t, "BTC", p.Symbol)
	assert.Equal(t, domain.DirectionDown, p.Direction)
	assert.Equal(t, int64(25), p.Stake)
	assert.Equal(t, "64250.75", p.EntryPrice.String())
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), p.ExpiryTime)
	assert.True(t, p.RemoteReady)
	assert.Equal(t, domain.OutcomePending, p.Outcome)
}

func TestParseRow_Malformed(t *testing.T) {
	rows := map[string]string{
		"too few fields": "1|BTC|UP|10",
		"bad id":         "x|BTC|UP|10|100|2025-01-02T03:04:05Z|READY",
		"bad direction":  "1|BTC|LEFT|10|100|2025-01-02T03:04:05Z|READY",
		"bad stake":      "1|BTC|UP|ten|100|2025-01-02T03:04:05Z|READY",
		"zero stake":     "1|BTC|UP|0|100|2025-01-02T03:04:05Z|READY",
		"negative stake": "1|BTC|UP|-5|100|2025-01-02T03:04:05Z|READY",
		"bad price":      "1|BTC|UP|10|NaNish|2025-01-02T03:04:05Z|READY",
		"bad expiry":     "1|BTC|UP|10|100|tomorrow|READY",
		"bad flag":       "1|BTC|UP|10|100|2025-01-02T03:04:05Z|MAYBE",
		"empty symbol":   "1||UP|10|100|2025-01-02T03:04:05Z|READY",
	}
	for name, row := range rows {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRow(row)
			assert.Error(t, err)
		})
	}
}

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary("Total: 5 | Active: 2 | Won: 2 | Lost: 1")
	require.NoError(t, err)
	assert.Equal(t, domain.PredictionSummary{Total: 5, Active: 2, Won: 2, Lost: 1}, s)
	assert.Equal(t, domain.UserStats{Total: 5, Wins: 2, Losses: 1, WinRate: 40}, s.Stats())
}

func TestParseSummary_Legacy(t *testing.T) {
	s, err := ParseSummary("Total: 3 predictions (Active: 1, Won: 1, Lost: 1)")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Active)
}

func TestParseSummary_NoPredictions(t *testing.T) {
	s, err := ParseSummary("No predictions")
	require.NoError(t, err)
	assert.True(t, s.Empty)
	assert.Equal(t, 0, s.Stats().Total)
}

func TestParseSummary_Garbage(t *testing.T) {
	_, err := ParseSummary("something else")
	assert.ErrorIs(t, err, domain.ErrNormalization)
}

package registry

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var remoteNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry() *Registry {
	r := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return remoteNow }
	return r
}

const (
	rowReady   = "1|BTC|UP|50|95000.5|2025-06-01T11:59:00Z|READY"
	rowWaiting = "2|ETH|DOWN|20|3400|2025-06-01T12:05:00Z|WAITING"
)

func TestMerge_AcceptsRowsAndDerivesReady(t *testing.T) {
	r := newTestRegistry()
	rep := r.Merge(domain.PredictionSummary{Total: 2, Active: 2}, []string{rowWaiting, rowReady}, remoteNow)

	assert.Equal(t, 2, rep.Accepted)
	assert.Equal(t, 0, rep.Dropped)

	active := r.GetActive()
	require.Len(t, active, 2)
	assert.Equal(t, uint64(1), active[0].ID)
	assert.True(t, active[0].Ready)
	assert.True(t, active[0].CanSettle())
	assert.Equal(t, "95000.5", active[0].EntryPrice.String())
	assert.Equal(t, domain.DirectionDown, active[1].Direction)
	assert.False(t, active[1].Ready)
	assert.Equal(t, 2, r.Summary().Active)
}

func TestMerge_MalformedRowDropped(t *testing.T) {
	r := newTestRegistry()
	rep := r.Merge(domain.PredictionSummary{}, []string{
		rowReady,
		"3|BTC|UP|abc|95000|2025-06-01T11:00:00Z|READY",
	}, remoteNow)

	assert.Equal(t, 1, rep.Accepted)
	assert.Equal(t, 1, rep.Dropped)

	active := r.GetActive()
	require.Len(t, active, 1)
	assert.Equal(t, uint64(1), active[0].ID)

	diags := r.Diagnostics()
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Row, "abc")
	assert.Contains(t, diags[0].Reason, "stake")
}

func TestMerge_RemoteReadyWinsOnDisagreement(t *testing.T) {
	r := newTestRegistry()
	// expiry passed locally but contract still says WAITING
	rep := r.Merge(domain.PredictionSummary{}, []string{"5|BTC|UP|10|90000|2025-06-01T11:00:00Z|WAITING"}, remoteNow)

	assert.Equal(t, []uint64{5}, rep.ReadyDisagreement)
	p, ok := r.Get(5)
	require.True(t, ok)
	assert.True(t, p.Ready)
	assert.False(t, p.CanSettle())
}

func TestMerge_OutcomeNeverReverted(t *testing.T) {
	r := newTestRegistry()
	r.Merge(domain.PredictionSummary{}, []string{rowReady}, remoteNow)

	require.True(t, r.ApplyOutcome(1, domain.OutcomeWon, "WON: BTC $95000 -> $96000"))

	// a stale read still lists the prediction as active
	r.Merge(domain.PredictionSummary{}, []string{rowReady}, remoteNow.Add(time.Second))

	p, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeWon, p.Outcome)
	assert.Empty(t, r.GetActive())

	assert.False(t, r.ApplyOutcome(1, domain.OutcomeLost, "LOST"))
	p, _ = r.Get(1)
	assert.Equal(t, domain.OutcomeWon, p.Outcome)
}

func TestMerge_KeepsOriginalTerms(t *testing.T) {
	r := newTestRegistry()
	r.Merge(domain.PredictionSummary{}, []string{rowReady}, remoteNow)
	r.Merge(domain.PredictionSummary{}, []string{"1|BTC|DOWN|999|1|2025-06-01T11:59:00Z|READY"}, remoteNow)

	p, _ := r.Get(1)
	assert.Equal(t, domain.DirectionUp, p.Direction)
	assert.Equal(t, int64(50), p.Stake)
	assert.Len(t, r.Diagnostics(), 1)
}

func TestMerge_Idempotent(t *testing.T) {
	r := newTestRegistry()
	rows := []string{rowReady, rowWaiting}
	r.Merge(domain.PredictionSummary{Total: 2}, rows, remoteNow)
	first := r.GetActive()
	r.Merge(domain.PredictionSummary{Total: 2}, rows, remoteNow)
	assert.Equal(t, first, r.GetActive())
}

func TestMerge_MissingRowsLeaveActiveView(t *testing.T) {
	r := newTestRegistry()
	r.Merge(domain.PredictionSummary{}, []string{rowReady, rowWaiting}, remoteNow)
	r.Merge(domain.PredictionSummary{}, SplitRows("NONE"), remoteNow)

	assert.Empty(t, r.GetActive())
	_, ok := r.Get(2)
	assert.True(t, ok)
}

func TestMerge_ZeroRemoteTimeUsesClock(t *testing.T) {
	r := newTestRegistry()
	r.Merge(domain.PredictionSummary{}, []string{rowReady}, time.Time{})
	p, _ := r.Get(1)
	assert.True(t, p.Ready)
}

func TestApplyOutcome_UnknownID(t *testing.T) {
	r := newTestRegistry()
	assert.True(t, r.ApplyOutcome(42, domain.OutcomeLost, "LOST: ETH"))
	p, ok := r.Get(42)
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeLost, p.Outcome)
	assert.Empty(t, r.GetActive())
}

func TestReset(t *testing.T) {
	r := newTestRegistry()
	r.Merge(domain.PredictionSummary{Total: 1}, []string{rowReady}, remoteNow)
	r.Reset()
	assert.Empty(t, r.GetActive())
	_, ok := r.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Summary().Total)
}

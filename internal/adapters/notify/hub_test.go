package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/predictsync/internal/adapters/notify"
	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*notify.Hub, string) {
	t.Helper()
	h := notify.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return h, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) notify.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env notify.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastsEnvelope(t *testing.T) {
	h, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.SettlementOutcome(context.Background(), domain.SettlementEvent{
		PredictionID: 9,
		Outcome:      domain.OutcomeLost,
		Message:      "LOST: ETH went DOWN",
	})

	env := readEnvelope(t, conn)
	assert.Equal(t, notify.MsgSettlement, env.Type)

	var ev domain.SettlementEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, uint64(9), ev.PredictionID)
	assert.Equal(t, domain.OutcomeLost, ev.Outcome)
}

func TestHub_ReplaysLastStateOnConnect(t *testing.T) {
	h, url := startHub(t)

	h.SessionStatus(context.Background(), domain.SessionStatusEvent{
		State:     domain.SessionConnected,
		AccountID: "0xabc",
		NetworkID: domain.TargetNetworkID,
	})

	conn := dial(t, url)
	env := readEnvelope(t, conn)
	assert.Equal(t, notify.MsgSessionStatus, env.Type)

	var ev domain.SessionStatusEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, domain.SessionConnected, ev.State)
	assert.Equal(t, "0xabc", ev.AccountID)
}

func TestHub_ReplayStartsWithSessionStatus(t *testing.T) {
	h, url := startHub(t)
	ctx := context.Background()

	h.FieldUpdate(ctx, domain.FieldUpdate{Field: domain.FieldBalance, Value: int64(250)})
	h.RegistrySnapshot(ctx, domain.RegistrySnapshot{})
	h.FieldUpdate(ctx, domain.FieldUpdate{Field: domain.FieldStats, Placeholder: "unavailable"})
	h.SessionStatus(ctx, domain.SessionStatusEvent{State: domain.SessionConnected, AccountID: "0xabc"})

	conn := dial(t, url)
	var types []string
	for range 4 {
		types = append(types, readEnvelope(t, conn).Type)
	}
	assert.Equal(t, []string{
		notify.MsgSessionStatus,
		notify.MsgField, // balance
		notify.MsgField, // stats
		notify.MsgSnapshot,
	}, types)
}

func TestHub_DisconnectDropsReplayedData(t *testing.T) {
	h, url := startHub(t)
	ctx := context.Background()
	first := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.SessionStatus(ctx, domain.SessionStatusEvent{State: domain.SessionConnected, AccountID: "0xabc"})
	h.FieldUpdate(ctx, domain.FieldUpdate{Field: domain.FieldBalance, Value: int64(250)})
	h.RegistrySnapshot(ctx, domain.RegistrySnapshot{})
	h.SessionStatus(ctx, domain.SessionStatusEvent{State: domain.SessionDisconnected, Reason: "accounts cleared"})
	// the live client still sees the whole stream
	for range 4 {
		readEnvelope(t, first)
	}

	conn := dial(t, url)
	env := readEnvelope(t, conn)
	require.Equal(t, notify.MsgSessionStatus, env.Type)
	var ev domain.SessionStatusEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, domain.SessionDisconnected, ev.State)

	// nothing else is replayed
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	h, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type recordingPresenter struct {
	fields []string
}

func (r *recordingPresenter) SessionStatus(context.Context, domain.SessionStatusEvent)   {}
func (r *recordingPresenter) RegistrySnapshot(context.Context, domain.RegistrySnapshot) {}
func (r *recordingPresenter) SettlementOutcome(context.Context, domain.SettlementEvent) {}
func (r *recordingPresenter) FieldUpdate(_ context.Context, upd domain.FieldUpdate) {
	r.fields = append(r.fields, upd.Field)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recordingPresenter{}, &recordingPresenter{}
	m := notify.NewMulti(a, nil, b)
	require.Len(t, m, 2)

	m.FieldUpdate(context.Background(), domain.FieldUpdate{Field: domain.FieldBalance, Value: int64(1)})
	assert.Equal(t, []string{domain.FieldBalance}, a.fields)
	assert.Equal(t, []string{domain.FieldBalance}, b.fields)
}

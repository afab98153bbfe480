package game_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/ports"
)

// --- wallet ---

type fakeWallet struct {
	mu          sync.Mutex
	accounts    []string
	network     uint64
	allowSwitch bool
	switchCalls int
	events      chan domain.WalletEvent
}

func newFakeWallet(account string) *fakeWallet {
	return &fakeWallet{
		accounts:    []string{account},
		network:     domain.TargetNetworkID,
		allowSwitch: true,
		events:      make(chan domain.WalletEvent, 4),
	}
}

func (w *fakeWallet) Accounts(context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.accounts...), nil
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	return w.Accounts(ctx)
}

func (w *fakeWallet) NetworkID(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.network, nil
}

func (w *fakeWallet) SwitchNetwork(_ context.Context, target uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switchCalls++
	if !w.allowSwitch {
		return errors.New("user rejected network switch")
	}
	w.network = target
	return nil
}

func (w *fakeWallet) Events() <-chan domain.WalletEvent { return w.events }

// --- contract ---

type fakeContract struct {
	mu       sync.Mutex
	balance  any
	price    any
	summary  any
	active   any
	now      any
	leaders  any
	stats    any
	deposits []int64
	places   []string
	settles  []uint64
	nextTx   int
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		balance: int64(250),
		price:   map[string]any{"symbol": "BTC", "price_usd_cents": int64(9_600_000), "source": "mock"},
		summary: "Total: 5 | Active: 2 | Won: 2 | Lost: 1",
		active:  "1|BTC|UP|50|95000|2025-06-01T11:59:00Z|READY;;2|ETH|DOWN|20|3400|2025-06-01T12:30:00Z|WAITING",
		now:     "2025-06-01T12:00:00Z",
		leaders: "Leaderboard:\n1. 0xabcdef0123... - 3 wins\n",
		stats:   "Predictions: 9 | Players: 3 | Current Time: 2025-06-01T12:00:00Z",
	}
}

func (c *fakeContract) get(v *any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := (*v).(error); ok {
		return nil, err
	}
	return *v, nil
}

func (c *fakeContract) set(v *any, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*v = val
}

func (c *fakeContract) CurrentTime(context.Context) (any, error) { return c.get(&c.now) }
func (c *fakeContract) CurrentPrice(_ context.Context, symbol string) (any, error) {
	return c.get(&c.price)
}
func (c *fakeContract) Balance(context.Context, string) (any, error) { return c.get(&c.balance) }
func (c *fakeContract) PredictionDetails(_ context.Context, id uint64) (any, error) {
	return fmt.Sprintf("Prediction #%d: BTC UP", id), nil
}
func (c *fakeContract) UserPredictions(context.Context, string) (any, error) {
	return c.get(&c.summary)
}
func (c *fakeContract) UserActivePredictions(context.Context, string) (any, error) {
	return c.get(&c.active)
}
func (c *fakeContract) Leaderboard(context.Context) (any, error) { return c.get(&c.leaders) }
func (c *fakeContract) GameStats(context.Context) (any, error)   { return c.get(&c.stats) }

func (c *fakeContract) handle() domain.TxHandle {
	c.nextTx++
	return domain.TxHandle(fmt.Sprintf("0x%064x", c.nextTx))
}

func (c *fakeContract) Deposit(_ context.Context, amount int64) (domain.TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deposits = append(c.deposits, amount)
	return c.handle(), nil
}

func (c *fakeContract) PlacePrediction(_ context.Context, symbol string, dir domain.Direction, amount, secs int64) (domain.TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.places = append(c.places, fmt.Sprintf("%s %s %d %d", symbol, dir, amount, secs))
	return c.handle(), nil
}

func (c *fakeContract) SettlePrediction(_ context.Context, id uint64) (domain.TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settles = append(c.settles, id)
	return c.handle(), nil
}

func (c *fakeContract) depositCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deposits)
}

type fakeDialer struct {
	contract *fakeContract
	binds    int
}

func (d *fakeDialer) Bind(contractID, accountID string) (ports.Contract, error) {
	if contractID == "" {
		return nil, domain.ErrContractNotConfigured
	}
	d.binds++
	return d.contract, nil
}

// --- status source ---

type fakeStatus struct {
	mu      sync.Mutex
	respond func(handle domain.TxHandle) (domain.TxReport, error)
	calls   int
}

func (f *fakeStatus) TransactionStatus(_ context.Context, handle domain.TxHandle) (domain.TxReport, error) {
	f.mu.Lock()
	f.calls++
	respond := f.respond
	f.mu.Unlock()
	return respond(handle)
}

func acceptedWith(message string) func(domain.TxHandle) (domain.TxReport, error) {
	return func(h domain.TxHandle) (domain.TxReport, error) {
		return domain.TxReport{
			Handle: h,
			Status: domain.TxStatusAccepted,
			Raw: map[string]any{
				"hash":   string(h),
				"status": "ACCEPTED",
				"consensus_data": map[string]any{
					"leader_receipt": []any{map[string]any{
						"genvm_result": map[string]any{"data": message},
					}},
				},
			},
		}, nil
	}
}

// --- presenter ---

type recordingPresenter struct {
	mu          sync.Mutex
	statuses    []domain.SessionStatusEvent
	snapshots   []domain.RegistrySnapshot
	settlements []domain.SettlementEvent
	fields      []domain.FieldUpdate
}

func (p *recordingPresenter) SessionStatus(_ context.Context, ev domain.SessionStatusEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, ev)
}

func (p *recordingPresenter) RegistrySnapshot(_ context.Context, snap domain.RegistrySnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snap)
}

func (p *recordingPresenter) SettlementOutcome(_ context.Context, ev domain.SettlementEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settlements = append(p.settlements, ev)
}

func (p *recordingPresenter) FieldUpdate(_ context.Context, upd domain.FieldUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields = append(p.fields, upd)
}

func (p *recordingPresenter) lastStatus() domain.SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return ""
	}
	return p.statuses[len(p.statuses)-1].State
}

func (p *recordingPresenter) settlementCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.settlements)
}

// --- journal ---

type fakeJournal struct {
	mu          sync.Mutex
	submitted   []domain.PendingTransaction
	finals      map[domain.TxHandle]string
	settlements []domain.SettlementEvent
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{finals: make(map[domain.TxHandle]string)}
}

func (j *fakeJournal) RecordSubmitted(_ context.Context, tx domain.PendingTransaction, _ string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.submitted = append(j.submitted, tx)
	return fmt.Sprintf("local-%d", len(j.submitted)), nil
}

func (j *fakeJournal) RecordFinal(_ context.Context, h domain.TxHandle, st domain.TxStatus, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finals[h] = string(st) + "|" + errMsg
	return nil
}

func (j *fakeJournal) RecordSettlement(_ context.Context, ev domain.SettlementEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.settlements = append(j.settlements, ev)
	return nil
}

func (j *fakeJournal) History(context.Context, time.Time, time.Time) ([]domain.JournalEntry, error) {
	return nil, nil
}

func (j *fakeJournal) Close() error { return nil }

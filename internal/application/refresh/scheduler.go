// Package refresh keeps the session's view of the contract fresh on a timer.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultPeriod es el intervalo de refresco automático.
const DefaultPeriod = 10 * time.Second

// Refresher ejecuta los cinco sub-refrescos independientes de un tick.
// Cada uno publica su propio campo; un fallo no afecta a los demás.
type Refresher interface {
	RefreshBalance(ctx context.Context, s *domain.Session) error
	RefreshPrice(ctx context.Context, s *domain.Session) error
	RefreshPredictions(ctx context.Context, s *domain.Session) error
	RefreshStats(ctx context.Context, s *domain.Session) error
	RefreshLeaderboard(ctx context.Context, s *domain.Session) error
}

type task struct {
	name string
	fn   func(ctx context.Context, s *domain.Session) error
}

// tickerFunc permite sustituir el ticker en tests.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// run es una ejecución del loop ligada a una sesión concreta.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancela el loop y espera a que el tick en curso termine.
func (r *run) Stop() {
	r.cancel()
	<-r.done
}

// Scheduler runs an immediate refresh and then one every period until stopped.
type Scheduler struct {
	refresher Refresher
	period    time.Duration
	logger    *slog.Logger
	newTicker tickerFunc

	mu      sync.Mutex
	current *run
	ticks   atomic.Int64
}

// New crea un scheduler. period <= 0 usa DefaultPeriod.
func New(r Refresher, period time.Duration, logger *slog.Logger) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		refresher: r,
		period:    period,
		logger:    logger,
		newTicker: realTicker,
	}
}

// Start begins refreshing for session. A previous run is stopped first.
// The run is attached to the session, so invalidating the session stops it.
func (s *Scheduler) Start(session *domain.Session) error {
	if err := session.RequireReadable(); err != nil {
		return fmt.Errorf("refresh.Start: %w", err)
	}

	s.mu.Lock()
	if s.current != nil {
		s.current.Stop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{})}
	s.current = r
	s.mu.Unlock()

	session.Attach(r)
	go s.loop(ctx, session, r.done)

	s.logger.Info("refresh: started", "account", session.AccountID, "period", s.period)
	return nil
}

// Stop is synchronous and idempotent: once it returns no further tick runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	r := s.current
	s.current = nil
	s.mu.Unlock()

	if r != nil {
		r.Stop()
		s.logger.Info("refresh: stopped")
	}
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Ticks devuelve cuántos ticks se han ejecutado (diagnóstico).
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// RefreshNow runs one full refresh synchronously, e.g. after a write
// reached finality. It returns the joined sub-refresh errors.
func (s *Scheduler) RefreshNow(ctx context.Context, session *domain.Session) error {
	return s.tick(ctx, session)
}

func (s *Scheduler) loop(ctx context.Context, session *domain.Session, done chan struct{}) {
	defer close(done)

	_ = s.tick(ctx, session)

	ticks, stop := s.newTicker(s.period)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if ctx.Err() != nil {
				return
			}
			_ = s.tick(ctx, session)
		}
	}
}

func (s *Scheduler) tasks() []task {
	return []task{
		{"balance", s.refresher.RefreshBalance},
		{"price", s.refresher.RefreshPrice},
		{"predictions", s.refresher.RefreshPredictions},
		{"stats", s.refresher.RefreshStats},
		{"leaderboard", s.refresher.RefreshLeaderboard},
	}
}

// tick lanza los sub-refrescos en paralelo. Los errores se loguean y se
// agregan, nunca cancelan a los hermanos.
func (s *Scheduler) tick(ctx context.Context, session *domain.Session) error {
	if !session.Valid() {
		return domain.ErrSessionInvalidated
	}
	s.ticks.Add(1)
	start := time.Now()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, t := range s.tasks() {
		g.Go(func() error {
			if err := t.fn(ctx, session); err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("refresh: sub-refresh failed", "task", t.name, "err", err)
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("refresh: tick done", "elapsed", time.Since(start), "failed", len(errs))
	return errors.Join(errs...)
}

// Package finality waits for submitted transactions to reach a terminal
// consensus status on the remote ledger.
package finality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/ports"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultMaxRetries = 24 // 24 × 5s = 120s
)

// Options controla el bucle de polling.
type Options struct {
	Interval   time.Duration
	MaxRetries int
}

// DefaultOptions devuelve 5s × 24 intentos.
func DefaultOptions() Options {
	return Options{Interval: DefaultInterval, MaxRetries: DefaultMaxRetries}
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// TimeoutError is returned when every attempt saw a non-terminal status.
type TimeoutError struct {
	Handle     domain.TxHandle
	Attempts   int
	LastStatus domain.TxStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not final after %d polls (last status %s)", e.Handle, e.Attempts, e.LastStatus)
}

func (e *TimeoutError) Unwrap() error { return domain.ErrFinalityTimeout }

// Poller consulta el status de transacciones hasta que llegan a un estado terminal.
// Cada llamada a AwaitFinality tiene su propio bucle; no hay cola compartida.
type Poller struct {
	source ports.TransactionStatusSource
	opts   Options
	logger *slog.Logger
}

// NewPoller crea un poller con las opciones por defecto dadas.
func NewPoller(source ports.TransactionStatusSource, opts Options, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{source: source, opts: opts.withDefaults(), logger: logger}
}

// Options devuelve las opciones efectivas del poller.
func (p *Poller) Options() Options { return p.opts }

// AwaitFinality polls handle until a terminal status or until MaxRetries
// polls have been made. Zero-valued options fall back to the poller's.
//
// Terminal success returns the receipt. Terminal failure returns a
// *domain.TxFailedError immediately. Exhaustion returns a *TimeoutError;
// no poll is issued after that. A failed status query counts as a pending
// attempt.
func (p *Poller) AwaitFinality(ctx context.Context, handle domain.TxHandle, opts Options) (domain.Receipt, error) {
	if opts.Interval <= 0 {
		opts.Interval = p.opts.Interval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = p.opts.MaxRetries
	}

	last := domain.TxStatusPending

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Receipt{}, fmt.Errorf("finality.AwaitFinality: %s: %w", handle, err)
		}
		report, err := p.source.TransactionStatus(ctx, handle)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Receipt{}, fmt.Errorf("finality.AwaitFinality: %s: %w", handle, ctxErr)
			}
			p.logger.Warn("finality: status query failed",
				"tx", handle, "attempt", attempt, "err", err)
		case report.Status.IsSuccess():
			p.logger.Info("finality: transaction final",
				"tx", handle, "status", report.Status, "attempts", attempt)
			return domain.Receipt{
				Handle:      handle,
				Status:      report.Status,
				Raw:         report.Raw,
				FinalizedAt: time.Now().UTC(),
				Attempts:    attempt,
			}, nil
		case report.Status.IsFailure():
			p.logger.Warn("finality: transaction failed",
				"tx", handle, "status", report.Status, "reason", report.Reason)
			return domain.Receipt{}, &domain.TxFailedError{
				Handle: handle,
				Status: report.Status,
				Reason: report.Reason,
			}
		default:
			last = report.Status
			p.logger.Debug("finality: pending",
				"tx", handle, "status", report.Status, "attempt", attempt, "max", opts.MaxRetries)
		}

		if attempt == opts.MaxRetries {
			break
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Receipt{}, fmt.Errorf("finality.AwaitFinality: %s: %w", handle, ctx.Err())
		case <-timer.C:
		}
	}

	return domain.Receipt{}, &TimeoutError{Handle: handle, Attempts: opts.MaxRetries, LastStatus: last}
}

// IsTimeout reports whether err is a finality timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, domain.ErrFinalityTimeout)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/predictsync/internal/adapters/notify"
	"github.com/alejandrodnm/predictsync/internal/adapters/storage"
	"github.com/alejandrodnm/predictsync/internal/application/game"
	"github.com/alejandrodnm/predictsync/internal/domain"
	"golang.org/x/sync/errgroup"
)

// connect reutiliza la cuenta autorizada y, si no hay, la pide al wallet.
// Connect es quien publica PROVIDER_UNAVAILABLE cuando falta el wallet.
func connect(ctx context.Context, svc *game.Service) (*domain.Session, error) {
	sess, err := svc.TryAutoConnect(ctx)
	if err != nil && !errors.Is(err, domain.ErrProviderUnavailable) {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	return svc.Connect(ctx)
}

// runWatch mantiene la sesión viva, sigue los eventos del wallet y, si hay
// dirección, sirve los eventos por websocket hasta Ctrl+C.
func runWatch(ctx context.Context, svc *game.Service, hub *notify.Hub, wsAddr string) error {
	if _, err := connect(ctx, svc); err != nil {
		// la sesión puede llegar después por un evento del wallet
		slog.Warn("initial connect failed", "err", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := svc.Watch(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrProviderUnavailable) {
			return nil
		}
		return err
	})

	if hub != nil {
		g.Go(func() error { return hub.Run(ctx) })

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.HandleWS)
		srv := &http.Server{Addr: wsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		g.Go(func() error {
			slog.Info("ws: listening", "addr", wsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ws server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// runOnce conecta, refresca todos los campos una vez y sale.
func runOnce(ctx context.Context, svc *game.Service) error {
	sess, err := connect(ctx, svc)
	if err != nil {
		return err
	}
	return svc.Scheduler().RefreshNow(ctx, sess)
}

func runDeposit(ctx context.Context, svc *game.Service, amount int64) error {
	if _, err := connect(ctx, svc); err != nil {
		return err
	}
	receipt, err := svc.Deposit(ctx, amount)
	if err != nil {
		return err
	}
	slog.Info("deposit confirmed", "amount", amount, "tx", receipt.Handle, "status", receipt.Status)
	return nil
}

func runPlace(ctx context.Context, svc *game.Service, arg string) error {
	req, err := parsePlace(arg)
	if err != nil {
		return err
	}
	if _, err := connect(ctx, svc); err != nil {
		return err
	}
	res, err := svc.PlacePrediction(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("prediction placed",
		"id", res.PredictionID,
		"tx", res.Receipt.Handle,
		"message", res.Message,
	)
	return nil
}

func runSettle(ctx context.Context, svc *game.Service, id uint64) error {
	if _, err := connect(ctx, svc); err != nil {
		return err
	}
	ev, err := svc.Settle(ctx, id)
	if err != nil {
		return err
	}
	slog.Info("prediction settled", "id", id, "outcome", ev.Outcome, "rule", ev.Rule)
	return nil
}

func runDetails(ctx context.Context, svc *game.Service, id uint64) error {
	if _, err := connect(ctx, svc); err != nil {
		return err
	}
	text, err := svc.PredictionDetails(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runReport(ctx context.Context, store *storage.SQLiteJournal, console *notify.Console, days int) error {
	if days <= 0 {
		days = 7
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	entries, err := store.History(ctx, from, to)
	if err != nil {
		return err
	}
	settles, err := store.Settlements(ctx, from, to)
	if err != nil {
		return err
	}
	console.PrintReport(entries, settles)
	return nil
}

// parsePlace interpreta "SYM:DIR:AMOUNT[:SECONDS]".
func parsePlace(arg string) (game.PlaceRequest, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return game.PlaceRequest{}, fmt.Errorf("-place %q: want SYM:UP|DOWN:AMOUNT[:SECONDS]", arg)
	}
	dir, ok := domain.ParseDirection(parts[1])
	if !ok {
		return game.PlaceRequest{}, fmt.Errorf("-place %q: direction must be UP or DOWN", arg)
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return game.PlaceRequest{}, fmt.Errorf("-place %q: amount: %w", arg, err)
	}
	req := game.PlaceRequest{
		Symbol:    strings.TrimSpace(parts[0]),
		Direction: dir,
		Amount:    amount,
	}
	if len(parts) == 4 {
		secs, err := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil || secs <= 0 {
			return game.PlaceRequest{}, fmt.Errorf("-place %q: seconds must be a positive integer", arg)
		}
		req.Duration = time.Duration(secs) * time.Second
	}
	return req, nil
}

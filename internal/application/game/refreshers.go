package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/normalize"
	"github.com/alejandrodnm/predictsync/internal/ports"
	"github.com/alejandrodnm/predictsync/internal/registry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// contractFor devuelve el contrato de sess si sigue siendo la sesión activa.
func (s *Service) contractFor(sess *domain.Session) (ports.Contract, error) {
	if err := sess.RequireReadable(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != sess || s.contract == nil {
		return nil, domain.ErrSessionInvalidated
	}
	return s.contract, nil
}

// publish aplica un campo a la vista y lo emite, salvo que la sesión ya no sea la activa.
func (s *Service) publish(ctx context.Context, sess *domain.Session, field string, value any, apply func(v *View)) error {
	s.mu.Lock()
	if s.session != sess || !sess.Valid() {
		s.mu.Unlock()
		return domain.ErrSessionInvalidated
	}
	apply(&s.view)
	delete(s.view.Placeholders, field)
	s.mu.Unlock()

	s.presenter.FieldUpdate(ctx, domain.FieldUpdate{Field: field, Value: value, At: time.Now().UTC()})
	return nil
}

// degrade publica un placeholder para field y devuelve cause.
func (s *Service) degrade(ctx context.Context, sess *domain.Session, field, placeholder string, cause error) error {
	s.mu.Lock()
	if s.session != sess || !sess.Valid() {
		s.mu.Unlock()
		return domain.ErrSessionInvalidated
	}
	s.view.Placeholders[field] = placeholder
	s.mu.Unlock()

	s.presenter.FieldUpdate(ctx, domain.FieldUpdate{Field: field, Placeholder: placeholder, At: time.Now().UTC()})
	return cause
}

func placeholderFor(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, domain.ErrNormalization) {
		return placeholderInvalid
	}
	return placeholderUnavailable
}

// RefreshBalance lee el balance de la cuenta.
func (s *Service) RefreshBalance(ctx context.Context, sess *domain.Session) error {
	c, err := s.contractFor(sess)
	if err != nil {
		return err
	}
	raw, err := c.Balance(ctx, sess.AccountID)
	if err != nil {
		return s.degrade(ctx, sess, domain.FieldBalance, placeholderFor(err), fmt.Errorf("balance: %w", err))
	}
	n, err := normalize.Integer(raw)
	if err != nil {
		return s.degrade(ctx, sess, domain.FieldBalance, placeholderFor(err), fmt.Errorf("balance: %w", err))
	}
	return s.publish(ctx, sess, domain.FieldBalance, n, func(v *View) { v.Balance = n })
}

// RefreshPrice cotiza el símbolo seleccionado.
func (s *Service) RefreshPrice(ctx context.Context, sess *domain.Session) error {
	c, err := s.contractFor(sess)
	if err != nil {
		return err
	}
	q, err := s.fetchPrice(ctx, c, s.Symbol())
	if err != nil {
		return s.degrade(ctx, sess, domain.FieldPrice, placeholderFor(err), err)
	}
	return s.publish(ctx, sess, domain.FieldPrice, q, func(v *View) { v.Price = q })
}

func (s *Service) fetchPrice(ctx context.Context, c ports.ContractReader, symbol string) (domain.PriceQuote, error) {
	raw, err := c.CurrentPrice(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("price %s: %w", symbol, err)
	}
	q, err := normalize.Price(raw)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("price %s: %w", symbol, err)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

// RefreshStats deriva las estadísticas del usuario del resumen de predicciones.
func (s *Service) RefreshStats(ctx context.Context, sess *domain.Session) error {
	c, err := s.contractFor(sess)
	if err != nil {
		return err
	}
	summary, err := s.fetchSummary(ctx, c, sess.AccountID)
	if err != nil {
		return s.degrade(ctx, sess, domain.FieldStats, placeholderFor(err), err)
	}
	st := summary.Stats()
	return s.publish(ctx, sess, domain.FieldStats, st, func(v *View) { v.Stats = st })
}

func (s *Service) fetchSummary(ctx context.Context, c ports.ContractReader, account string) (domain.PredictionSummary, error) {
	raw, err := c.UserPredictions(ctx, account)
	if err != nil {
		return domain.PredictionSummary{}, fmt.Errorf("summary: %w", err)
	}
	text, err := normalize.Text(raw)
	if err != nil {
		return domain.PredictionSummary{}, fmt.Errorf("summary: %w", err)
	}
	return registry.ParseSummary(text)
}

// RefreshLeaderboard lee el ranking y las estadísticas globales del juego.
// Las estadísticas globales son opcionales: su fallo solo se loguea.
func (s *Service) RefreshLeaderboard(ctx context.Context, sess *domain.Session) error {
	c, err := s.contractFor(sess)
	if err != nil {
		return err
	}

	if raw, err := c.GameStats(ctx); err != nil {
		s.logger.Debug("game: game stats unavailable", "err", err)
	} else if text, err := normalize.Text(raw); err == nil {
		if gs, ok := domain.ParseGameStats(text); ok {
			_ = s.publish(ctx, sess, domain.FieldGameStats, gs, func(v *View) { v.GameStats = gs })
		}
	}

	raw, err := c.Leaderboard(ctx)
	if err != nil {
		return s.degrade(ctx, sess, domain.FieldLeaderboard, placeholderFor(err), fmt.Errorf("leaderboard: %w", err))
	}
	text, err := normalize.Text(raw)
	if err != nil {
		return s.degrade(ctx, sess, domain.FieldLeaderboard, placeholderFor(err), fmt.Errorf("leaderboard: %w", err))
	}
	entries := domain.ParseLeaderboard(text)
	return s.publish(ctx, sess, domain.FieldLeaderboard, entries, func(v *View) { v.Leaderboard = entries })
}

// RefreshPredictions reads the summary, the active rows and the remote
// clock concurrently, merges them into the registry and publishes a
// snapshot enriched with live prices for every active symbol.
// A failed summary keeps the previous one; RefreshStats owns its placeholder.
// Failed rows leave the registry untouched and degrade FieldPredictions.
func (s *Service) RefreshPredictions(ctx context.Context, sess *domain.Session) error {
	c, err := s.contractFor(sess)
	if err != nil {
		return err
	}

	var (
		summary    domain.PredictionSummary
		summaryErr error
		rowsText   string
		remoteTime time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, summaryErr = s.fetchSummary(gctx, c, sess.AccountID)
		return nil
	})
	g.Go(func() error {
		raw, err := c.UserActivePredictions(gctx, sess.AccountID)
		if err != nil {
			return fmt.Errorf("active predictions: %w", err)
		}
		rowsText, err = normalize.Text(raw)
		if err != nil {
			return fmt.Errorf("active predictions: %w", err)
		}
		if normalize.IsRemoteError(rowsText) {
			return fmt.Errorf("active predictions: remote error %q: %w", strings.TrimSpace(rowsText), domain.ErrNormalization)
		}
		return nil
	})
	g.Go(func() error {
		raw, err := c.CurrentTime(gctx)
		if err != nil {
			s.logger.Debug("game: remote time unavailable", "err", err)
			return nil
		}
		if t, err := normalize.Time(raw); err == nil {
			remoteTime = t
		} else {
			s.logger.Debug("game: remote time unparseable, using local clock", "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		err = fmt.Errorf("predictions: %w", err)
		return s.degrade(ctx, sess, domain.FieldPredictions, placeholderFor(err), err)
	}
	if summaryErr != nil {
		s.logger.Warn("game: summary unavailable, merging rows with previous summary", "err", summaryErr)
		summary = s.registry.Summary()
	}

	if !s.isCurrent(sess) {
		return domain.ErrSessionInvalidated
	}
	rep := s.registry.Merge(summary, registry.SplitRows(rowsText), remoteTime)
	if rep.Dropped > 0 {
		s.logger.Warn("game: rows dropped during merge", "dropped", rep.Dropped, "accepted", rep.Accepted)
	}

	active := s.registry.GetActive()
	prices := s.pricesFor(ctx, c, active)

	now := remoteTime
	if now.IsZero() {
		now = time.Now().UTC()
	}
	snap := domain.RegistrySnapshot{
		Summary:    summary,
		Stats:      summary.Stats(),
		RemoteTime: remoteTime,
		At:         time.Now().UTC(),
	}
	for _, p := range active {
		ap := domain.ActivePrediction{
			Prediction:      p,
			Standing:        domain.StandingUnknown,
			PotentialPayout: p.PotentialPayout(),
			TimeLeft:        p.TimeLeft(now),
		}
		if price, ok := prices[p.Symbol]; ok {
			ap.CurrentPrice = price
			ap.Standing = p.Standing(price)
			ap.ChangePct = p.PriceChangePct(price)
		}
		snap.Active = append(snap.Active, ap)
	}

	s.mu.Lock()
	if s.session != sess || !sess.Valid() {
		s.mu.Unlock()
		return domain.ErrSessionInvalidated
	}
	s.view.Snapshot = snap
	delete(s.view.Placeholders, domain.FieldPredictions)
	s.mu.Unlock()

	s.presenter.RegistrySnapshot(ctx, snap)
	return nil
}

// pricesFor cotiza en paralelo cada símbolo distinto de las predicciones activas.
// Un símbolo que falla simplemente queda sin precio.
func (s *Service) pricesFor(ctx context.Context, c ports.ContractReader, active []domain.Prediction) map[string]decimal.Decimal {
	symbols := make(map[string]struct{})
	for _, p := range active {
		symbols[p.Symbol] = struct{}{}
	}

	var (
		mu  sync.Mutex
		out = make(map[string]decimal.Decimal, len(symbols))
		g   errgroup.Group
	)
	for sym := range symbols {
		g.Go(func() error {
			q, err := s.fetchPrice(ctx, c, sym)
			if err != nil {
				s.logger.Debug("game: price for standing unavailable", "symbol", sym, "err", err)
				return nil
			}
			mu.Lock()
			out[sym] = q.PriceUSD
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SelectSymbol cambia el símbolo cotizado y refresca el precio si hay sesión.
func (s *Service) SelectSymbol(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("game.SelectSymbol: %w", &domain.ValidationError{Field: "symbol", Reason: "empty"})
	}
	s.mu.Lock()
	s.symbol = symbol
	sess := s.session
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	return s.RefreshPrice(ctx, sess)
}

// PredictionDetails devuelve el texto de detalle de una predicción (depuración).
func (s *Service) PredictionDetails(ctx context.Context, id uint64) (string, error) {
	sess := s.Session()
	c, err := s.contractFor(sess)
	if err != nil {
		return "", fmt.Errorf("game.PredictionDetails: %w", err)
	}
	raw, err := c.PredictionDetails(ctx, id)
	if err != nil {
		return "", fmt.Errorf("game.PredictionDetails: %w", err)
	}
	text, err := normalize.Text(raw)
	if err != nil {
		return "", fmt.Errorf("game.PredictionDetails: %w", err)
	}
	return text, nil
}

package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/normalize"
	"github.com/alejandrodnm/predictsync/internal/ports"
	"github.com/alejandrodnm/predictsync/internal/settlement"
)

// PlaceRequest son los parámetros de una nueva predicción.
type PlaceRequest struct {
	Symbol    string
	Direction domain.Direction
	Amount    int64
	Duration  time.Duration // 0 = duración configurada
}

// PlaceResult es el resultado de una predicción confirmada.
type PlaceResult struct {
	Receipt      domain.Receipt
	Message      string
	PredictionID uint64 // 0 si el mensaje no traía "Prediction #N"
}

// Deposit deposita amount puntos tras validar el mínimo.
func (s *Service) Deposit(ctx context.Context, amount int64) (domain.Receipt, error) {
	if amount < s.cfg.MinDeposit {
		return domain.Receipt{}, fmt.Errorf("game.Deposit: %w", &domain.ValidationError{
			Field: "amount", Reason: fmt.Sprintf("minimum deposit is %d", s.cfg.MinDeposit),
		})
	}

	sess, receipt, err := s.submit(ctx, "deposit", "deposit", strconv.FormatInt(amount, 10),
		func(ctx context.Context, c ports.Contract) (domain.TxHandle, error) {
			return c.Deposit(ctx, amount)
		})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("game.Deposit: %w", err)
	}
	s.refreshAfterWrite(ctx, sess)
	return receipt, nil
}

// PlacePrediction valida y envía una predicción. La duración se envía en segundos.
func (s *Service) PlacePrediction(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		req.Symbol = s.Symbol()
	}
	if req.Duration <= 0 {
		req.Duration = s.cfg.Duration
	}
	if _, ok := domain.ParseDirection(string(req.Direction)); !ok {
		return PlaceResult{}, fmt.Errorf("game.PlacePrediction: %w", &domain.ValidationError{
			Field: "direction", Reason: "must be UP or DOWN",
		})
	}
	if req.Amount < s.cfg.MinStake {
		return PlaceResult{}, fmt.Errorf("game.PlacePrediction: %w", &domain.ValidationError{
			Field: "amount", Reason: fmt.Sprintf("minimum stake is %d", s.cfg.MinStake),
		})
	}
	secs := int64(req.Duration / time.Second)
	if secs <= 0 {
		return PlaceResult{}, fmt.Errorf("game.PlacePrediction: %w", &domain.ValidationError{
			Field: "duration", Reason: "must be at least one second",
		})
	}

	detail := fmt.Sprintf("%s %s %d %ds", req.Symbol, req.Direction, req.Amount, secs)
	sess, receipt, err := s.submit(ctx, "place", "place", detail,
		func(ctx context.Context, c ports.Contract) (domain.TxHandle, error) {
			return c.PlacePrediction(ctx, req.Symbol, req.Direction, req.Amount, secs)
		})
	if err != nil {
		return PlaceResult{}, fmt.Errorf("game.PlacePrediction: %w", err)
	}

	res := PlaceResult{Receipt: receipt}
	ext := settlement.Extract(receipt.Raw)
	res.Message = ext.Message
	if id, ok := settlement.PredictionID(ext.Message); ok {
		res.PredictionID = id
	}
	s.logger.Info("game: prediction placed", "id", res.PredictionID, "symbol", req.Symbol, "direction", req.Direction, "amount", req.Amount)

	s.refreshAfterWrite(ctx, sess)
	return res, nil
}

// Settle liquida una predicción, clasifica el mensaje del receipt y aplica el
// outcome al registry. Si la sesión terminó mientras se esperaba la finalidad,
// el resultado se descarta. Un receipt "ERROR: ..." deja la predicción PENDING
// para poder reintentar.
func (s *Service) Settle(ctx context.Context, id uint64) (domain.SettlementEvent, error) {
	if id == 0 {
		return domain.SettlementEvent{}, fmt.Errorf("game.Settle: %w", &domain.ValidationError{
			Field: "id", Reason: "must be positive",
		})
	}
	if p, ok := s.registry.Get(id); ok {
		if p.Outcome.IsTerminal() {
			return domain.SettlementEvent{}, fmt.Errorf("game.Settle: %w", &domain.ValidationError{
				Field: "id", Reason: fmt.Sprintf("prediction %d already settled (%s)", id, p.Outcome),
			})
		}
		if !p.CanSettle() {
			return domain.SettlementEvent{}, fmt.Errorf("game.Settle: %w", &domain.ValidationError{
				Field: "id", Reason: fmt.Sprintf("prediction %d is not ready", id),
			})
		}
	}

	key := "settle:" + strconv.FormatUint(id, 10)
	sess, receipt, err := s.submit(ctx, key, "settle", strconv.FormatUint(id, 10),
		func(ctx context.Context, c ports.Contract) (domain.TxHandle, error) {
			return c.SettlePrediction(ctx, id)
		})
	if err != nil {
		return domain.SettlementEvent{}, fmt.Errorf("game.Settle: %w", err)
	}

	ext := settlement.Extract(receipt.Raw)
	ev := domain.SettlementEvent{
		PredictionID: id,
		Outcome:      ext.Outcome,
		Message:      ext.Message,
		Rule:         ext.Rule,
		Handle:       receipt.Handle,
		At:           time.Now().UTC(),
	}
	s.registry.ApplyOutcome(id, ev.Outcome, ev.Message)
	s.logger.Info("game: prediction settled", "id", id, "outcome", ev.Outcome, "rule", ev.Rule)

	if s.journal != nil {
		if err := s.journal.RecordSettlement(ctx, ev); err != nil {
			s.logger.Warn("game: journal settlement failed", "id", id, "err", err)
		}
	}
	s.presenter.SettlementOutcome(ctx, ev)
	s.refreshAfterWrite(ctx, sess)
	return ev, nil
}

// submit ejecuta el flujo común de escritura: sesión escribible, guard de
// escritura en curso, envío, espera de finalidad y comprobación de la sesión.
func (s *Service) submit(
	ctx context.Context,
	key, kind, detail string,
	send func(ctx context.Context, c ports.Contract) (domain.TxHandle, error),
) (*domain.Session, domain.Receipt, error) {
	sess, contract, err := s.writable()
	if err != nil {
		return nil, domain.Receipt{}, err
	}
	if !s.acquire(key) {
		return nil, domain.Receipt{}, fmt.Errorf("%s: %w", key, domain.ErrWriteInFlight)
	}
	defer s.release(key)

	handle, err := send(ctx, contract)
	if err != nil {
		if !errors.Is(err, domain.ErrRemoteCall) {
			err = fmt.Errorf("%w: %w", domain.ErrRemoteCall, err)
		}
		return nil, domain.Receipt{}, fmt.Errorf("submit %s: %w", kind, err)
	}
	s.logger.Info("game: transaction submitted", "kind", kind, "tx", handle, "detail", detail)

	if s.journal != nil {
		pending := domain.PendingTransaction{
			Handle:      handle,
			Kind:        kind,
			AccountID:   sess.AccountID,
			SubmittedAt: time.Now().UTC(),
			Status:      domain.TxStatusPending,
		}
		if _, err := s.journal.RecordSubmitted(ctx, pending, detail); err != nil {
			s.logger.Warn("game: journal submit failed", "tx", handle, "err", err)
		}
	}

	// el poll muere con la sesión: Invalidate cancela pollCtx
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess.Attach(stopFunc(cancel))

	receipt, err := s.poller.AwaitFinality(pollCtx, handle, s.cfg.Finality)
	if err != nil && !s.isCurrent(sess) {
		s.logger.Warn("game: finality wait abandoned, session closed", "kind", kind, "tx", handle)
		return nil, domain.Receipt{}, fmt.Errorf("%s %s: %w", kind, handle, domain.ErrSessionInvalidated)
	}
	rejected := false
	if err == nil {
		// el contrato puede aceptar la tx y aun así contestar "ERROR: ..."
		if msg := strings.TrimSpace(settlement.Extract(receipt.Raw).Message); normalize.IsRemoteError(msg) {
			rejected = true
			err = fmt.Errorf("%s %s: %w: %s", kind, handle, domain.ErrRemoteCall, msg)
		}
	}
	s.recordFinal(ctx, handle, receipt, err)

	if !s.isCurrent(sess) {
		s.logger.Warn("game: discarding result for closed session", "kind", kind, "tx", handle)
		return nil, domain.Receipt{}, fmt.Errorf("%s %s: %w", kind, handle, domain.ErrSessionInvalidated)
	}
	if err != nil {
		if rejected {
			s.logger.Warn("game: transaction rejected by contract", "kind", kind, "tx", handle, "err", err)
			s.refreshAfterWrite(ctx, sess)
		}
		return nil, domain.Receipt{}, err
	}
	return sess, receipt, nil
}

// stopFunc adapta una función de cancelación a domain.Stopper.
type stopFunc func()

func (f stopFunc) Stop() { f() }

func (s *Service) recordFinal(ctx context.Context, handle domain.TxHandle, receipt domain.Receipt, err error) {
	if s.journal == nil {
		return
	}
	status := receipt.Status
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		var failed *domain.TxFailedError
		switch {
		case errors.As(err, &failed):
			status = failed.Status
		case errors.Is(err, domain.ErrFinalityTimeout):
			status = domain.TxStatusPending
		}
	}
	if jerr := s.journal.RecordFinal(ctx, handle, status, errMsg); jerr != nil {
		s.logger.Warn("game: journal final failed", "tx", handle, "err", jerr)
	}
}

// writable devuelve la sesión y el contrato si se permite escribir.
func (s *Service) writable() (*domain.Session, ports.Contract, error) {
	s.mu.Lock()
	sess, contract := s.session, s.contract
	s.mu.Unlock()

	if s.cfg.ContractID == "" {
		return nil, nil, domain.ErrContractNotConfigured
	}
	if err := sess.RequireWritable(); err != nil {
		return nil, nil, err
	}
	if contract == nil {
		return nil, nil, domain.ErrContractNotConfigured
	}
	return sess, contract, nil
}

// isCurrent: la sesión sigue viva y es la activa.
func (s *Service) isCurrent(sess *domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess != nil && s.session == sess && sess.Valid()
}

func (s *Service) refreshAfterWrite(ctx context.Context, sess *domain.Session) {
	if err := s.scheduler.RefreshNow(ctx, sess); err != nil {
		s.logger.Warn("game: refresh after write incomplete", "err", err)
	}
}

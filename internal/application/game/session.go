package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// Connect pide autorización al wallet, asegura la red objetivo (intentando
// cambiarla una vez) y abre una sesión nueva con refresco automático.
func (s *Service) Connect(ctx context.Context) (*domain.Session, error) {
	if s.cfg.ContractID == "" {
		return nil, fmt.Errorf("game.Connect: %w", domain.ErrContractNotConfigured)
	}
	if s.wallet == nil {
		s.emitStatus(ctx, domain.SessionProviderUnavailable, "", 0, "no wallet configured")
		return nil, fmt.Errorf("game.Connect: %w", domain.ErrProviderUnavailable)
	}

	accounts, err := s.wallet.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			s.emitStatus(ctx, domain.SessionProviderUnavailable, "", 0, err.Error())
		}
		return nil, fmt.Errorf("game.Connect: request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("game.Connect: no accounts authorised: %w", domain.ErrNotConnected)
	}
	return s.establish(ctx, accounts[0], true)
}

// TryAutoConnect reutiliza cuentas ya autorizadas sin pedir nada al usuario.
// Sin cuentas devuelve (nil, nil).
func (s *Service) TryAutoConnect(ctx context.Context) (*domain.Session, error) {
	if s.cfg.ContractID == "" {
		return nil, fmt.Errorf("game.TryAutoConnect: %w", domain.ErrContractNotConfigured)
	}
	if s.wallet == nil {
		return nil, fmt.Errorf("game.TryAutoConnect: %w", domain.ErrProviderUnavailable)
	}
	accounts, err := s.wallet.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("game.TryAutoConnect: accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.logger.Info("game: no authorised accounts, staying disconnected")
		return nil, nil
	}
	return s.establish(ctx, accounts[0], false)
}

// establish verifica la red, liga el contrato y reemplaza la sesión actual.
func (s *Service) establish(ctx context.Context, account string, allowSwitch bool) (*domain.Session, error) {
	netID, err := s.wallet.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("game.establish: network id: %w", err)
	}

	if netID != s.cfg.TargetNetwork && allowSwitch {
		s.logger.Info("game: switching network", "from", netID, "to", s.cfg.TargetNetwork)
		if err := s.wallet.SwitchNetwork(ctx, s.cfg.TargetNetwork); err != nil {
			s.logger.Warn("game: network switch failed", "err", err)
		}
		if netID, err = s.wallet.NetworkID(ctx); err != nil {
			return nil, fmt.Errorf("game.establish: network id after switch: %w", err)
		}
	}

	if netID != s.cfg.TargetNetwork {
		s.Disconnect(ctx, "wrong network")
		s.emitStatus(ctx, domain.SessionWrongNetwork, account, netID,
			fmt.Sprintf("expected network %d (0x%x)", s.cfg.TargetNetwork, s.cfg.TargetNetwork))
		return nil, fmt.Errorf("game.establish: on network %d: %w", netID, domain.ErrWrongNetwork)
	}

	contract, err := s.contracts.Bind(s.cfg.ContractID, account)
	if err != nil {
		return nil, fmt.Errorf("game.establish: bind contract: %w", err)
	}

	sess := domain.NewSession(account, s.cfg.ContractID, netID, s.cfg.TargetNetwork)

	s.mu.Lock()
	old := s.session
	s.session = sess
	s.contract = contract
	s.view = newView()
	s.mu.Unlock()

	if old != nil {
		old.Invalidate()
		s.registry.Reset()
	}

	s.logger.Info("game: session established", "account", account, "contract", s.cfg.ContractID, "network", netID)
	s.emitStatus(ctx, domain.SessionConnected, account, netID, "")

	if err := s.scheduler.Start(sess); err != nil {
		return sess, fmt.Errorf("game.establish: start refresh: %w", err)
	}
	return sess, nil
}

// Disconnect invalida la sesión actual, detiene sus tareas y descarta el estado local.
func (s *Service) Disconnect(ctx context.Context, reason string) {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.contract = nil
	s.view = newView()
	s.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Invalidate()
	s.registry.Reset()

	s.logger.Info("game: session closed", "account", sess.AccountID, "reason", reason)
	s.emitStatus(ctx, domain.SessionDisconnected, sess.AccountID, sess.NetworkID, reason)
}

// HandleWalletEvent aplica un cambio de cuentas o de red.
// Un conjunto de cuentas vacío desconecta; un cambio de red recarga la sesión entera.
func (s *Service) HandleWalletEvent(ctx context.Context, ev domain.WalletEvent) error {
	switch ev.Kind {
	case domain.WalletAccountsChanged:
		if len(ev.Accounts) == 0 {
			s.Disconnect(ctx, "accounts cleared")
			return nil
		}
		if cur := s.Session(); cur != nil && cur.AccountID == ev.Accounts[0] {
			return nil
		}
		_, err := s.establish(ctx, ev.Accounts[0], false)
		return err

	case domain.WalletNetworkChanged:
		s.Disconnect(ctx, "network changed")
		_, err := s.TryAutoConnect(ctx)
		return err
	}
	return nil
}

// Watch consume los eventos del wallet hasta que ctx se cancela.
func (s *Service) Watch(ctx context.Context) error {
	if s.wallet == nil {
		return fmt.Errorf("game.Watch: %w", domain.ErrProviderUnavailable)
	}
	events := s.wallet.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.HandleWalletEvent(ctx, ev); err != nil {
				s.logger.Warn("game: wallet event failed", "kind", ev.Kind, "err", err)
			}
		}
	}
}

// Close desconecta y detiene el scheduler.
func (s *Service) Close(ctx context.Context) {
	s.Disconnect(ctx, "shutdown")
	s.scheduler.Stop()
}

func (s *Service) emitStatus(ctx context.Context, state domain.SessionState, account string, netID uint64, reason string) {
	s.presenter.SessionStatus(ctx, domain.SessionStatusEvent{
		State:     state,
		AccountID: account,
		NetworkID: netID,
		Reason:    reason,
		At:        time.Now().UTC(),
	})
}

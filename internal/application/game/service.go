// Package game orchestrates the client session against the prediction
// contract: connection lifecycle, validated writes awaited to finality,
// and the periodic refreshes that keep the local view reconciled.
package game

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/predictsync/internal/application/refresh"
	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/finality"
	"github.com/alejandrodnm/predictsync/internal/ports"
	"github.com/alejandrodnm/predictsync/internal/registry"
)

const (
	DefaultMinDeposit = 100
	DefaultMinStake   = 10
	DefaultSymbol     = "BTC"
	DefaultDuration   = 60 * time.Second
)

// Config contiene los parámetros del juego y de sincronización.
type Config struct {
	ContractID    string
	TargetNetwork uint64
	MinDeposit    int64
	MinStake      int64
	Symbol        string
	Duration      time.Duration
	RefreshPeriod time.Duration
	Finality      finality.Options
}

// DefaultConfig devuelve la configuración por defecto (sin contrato).
func DefaultConfig() Config {
	return Config{
		TargetNetwork: domain.TargetNetworkID,
		MinDeposit:    DefaultMinDeposit,
		MinStake:      DefaultMinStake,
		Symbol:        DefaultSymbol,
		Duration:      DefaultDuration,
		RefreshPeriod: refresh.DefaultPeriod,
		Finality:      finality.DefaultOptions(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetNetwork == 0 {
		c.TargetNetwork = d.TargetNetwork
	}
	if c.MinDeposit <= 0 {
		c.MinDeposit = d.MinDeposit
	}
	if c.MinStake <= 0 {
		c.MinStake = d.MinStake
	}
	if c.Symbol == "" {
		c.Symbol = d.Symbol
	}
	if c.Duration <= 0 {
		c.Duration = d.Duration
	}
	if c.RefreshPeriod <= 0 {
		c.RefreshPeriod = d.RefreshPeriod
	}
	c.ContractID = strings.TrimSpace(c.ContractID)
	return c
}

// Deps agrupa las dependencias inyectadas desde cmd/.
type Deps struct {
	Wallet    ports.Wallet
	Contracts ports.ContractDialer
	Status    ports.TransactionStatusSource
	Presenter ports.Presenter
	Journal   ports.Journal // opcional
	Logger    *slog.Logger
}

// Service es el orquestador de la sesión. Seguro para uso concurrente.
type Service struct {
	cfg       Config
	wallet    ports.Wallet
	contracts ports.ContractDialer
	presenter ports.Presenter
	journal   ports.Journal
	poller    *finality.Poller
	registry  *registry.Registry
	scheduler *refresh.Scheduler
	logger    *slog.Logger

	mu       sync.Mutex
	session  *domain.Session
	contract ports.Contract
	symbol   string
	view     View

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New crea el servicio. Presenter es obligatorio; Journal puede ser nil.
func New(cfg Config, deps Deps) *Service {
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		wallet:    deps.Wallet,
		contracts: deps.Contracts,
		presenter: deps.Presenter,
		journal:   deps.Journal,
		poller:    finality.NewPoller(deps.Status, cfg.Finality, logger),
		registry:  registry.New(logger),
		logger:    logger,
		symbol:    strings.ToUpper(cfg.Symbol),
		view:      newView(),
		inflight:  make(map[string]struct{}),
	}
	s.scheduler = refresh.New(s, cfg.RefreshPeriod, logger)
	return s
}

// Config devuelve la configuración efectiva.
func (s *Service) Config() Config { return s.cfg }

// Registry expone el registry de predicciones (solo lectura para presentación).
func (s *Service) Registry() *registry.Registry { return s.registry }

// Scheduler expone el scheduler de refresco.
func (s *Service) Scheduler() *refresh.Scheduler { return s.scheduler }

// Session devuelve la sesión activa o nil.
func (s *Service) Session() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Symbol devuelve el símbolo seleccionado para cotizar.
func (s *Service) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

// acquire marca un target de escritura como en curso.
func (s *Service) acquire(key string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.inflightMu.Lock()
	delete(s.inflight, key)
	s.inflightMu.Unlock()
}

// InFlight reports whether a write for key is being awaited.
func (s *Service) InFlight(key string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	_, busy := s.inflight[key]
	return busy
}

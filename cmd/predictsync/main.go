package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/predictsync/config"
	"github.com/alejandrodnm/predictsync/internal/adapters/genlayer"
	"github.com/alejandrodnm/predictsync/internal/adapters/notify"
	"github.com/alejandrodnm/predictsync/internal/adapters/storage"
	"github.com/alejandrodnm/predictsync/internal/adapters/wallet"
	"github.com/alejandrodnm/predictsync/internal/application/game"
	"github.com/alejandrodnm/predictsync/internal/finality"
	"github.com/alejandrodnm/predictsync/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "connect, refresh everything once and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print tables instead of compact 1-line output")
	symbol := flag.String("symbol", "", "symbol to quote (overrides config)")
	deposit := flag.Int64("deposit", 0, "deposit N points and exit")
	place := flag.String("place", "", `place a prediction and exit: "SYM:UP|DOWN:AMOUNT[:SECONDS]"`)
	settle := flag.Uint64("settle", 0, "settle prediction ID and exit")
	details := flag.Uint64("details", 0, "print contract details for prediction ID and exit")
	report := flag.Bool("report", false, "print the local journal and exit")
	reportDays := flag.Int("days", 7, "days of journal to include in -report")
	wsAddr := flag.String("ws", "", "serve presenter events over websocket on addr (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *symbol != "" {
		cfg.Game.Symbol = *symbol
	}
	if *wsAddr != "" {
		cfg.Server.WSAddr = *wsAddr
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(*table)

	store, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	if *report {
		if err := runReport(ctx, store, console, *reportDays); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("predictsync starting",
		"config", *configPath,
		"rpc", cfg.Network.RPCURL,
		"contract", cfg.Contract.Address,
		"network", cfg.Network.ChainID,
		"refresh", cfg.RefreshInterval(),
	)

	client, err := genlayer.Dial(ctx, cfg.Network.RPCURL, slog.Default())
	if err != nil {
		slog.Error("failed to dial rpc", "err", err, "url", cfg.Network.RPCURL)
		os.Exit(1)
	}
	defer client.Close()

	// Sin clave el servicio arranca igual y reporta PROVIDER_UNAVAILABLE al conectar.
	var w ports.Wallet
	var signer genlayer.Signer
	kw, err := wallet.New(cfg.Wallet.PrivateKey, cfg.Network.RPCURL, cfg.Network.Endpoints, slog.Default())
	if err != nil {
		slog.Warn("wallet unavailable", "err", err)
	} else {
		defer kw.Close()
		kw.Unlock() // la clave configurada cuenta como cuenta ya autorizada
		w, signer = kw, kw
	}

	var hub *notify.Hub
	presenters := []ports.Presenter{console}
	if cfg.Server.WSAddr != "" {
		hub = notify.NewHub(slog.Default())
		presenters = append(presenters, hub)
	}

	svc := game.New(game.Config{
		ContractID:    cfg.Contract.Address,
		TargetNetwork: cfg.Network.ChainID,
		MinDeposit:    cfg.Game.MinDeposit,
		MinStake:      cfg.Game.MinStake,
		Symbol:        cfg.Game.Symbol,
		Duration:      cfg.Duration(),
		RefreshPeriod: cfg.RefreshInterval(),
		Finality: finality.Options{
			Interval:   cfg.FinalityInterval(),
			MaxRetries: cfg.Finality.MaxRetries,
		},
	}, game.Deps{
		Wallet: w,
		Contracts: genlayer.NewDialer(client, signer, genlayer.Options{
			ConsensusAddress: cfg.Contract.ConsensusAddress,
			ChainID:          cfg.Network.ChainID,
		}),
		Status:    client,
		Presenter: notify.NewMulti(presenters...),
		Journal:   store,
		Logger:    slog.Default(),
	})
	defer svc.Close(context.Background())

	switch {
	case *deposit > 0:
		err = runDeposit(ctx, svc, *deposit)
	case *place != "":
		err = runPlace(ctx, svc, *place)
	case *settle > 0:
		err = runSettle(ctx, svc, *settle)
	case *details > 0:
		err = runDetails(ctx, svc, *details)
	case *once:
		err = runOnce(ctx, svc)
	default:
		err = runWatch(ctx, svc, hub, cfg.Server.WSAddr)
	}
	if err != nil {
		slog.Error("predictsync exited with error", "err", err)
		svc.Close(context.Background())
		os.Exit(1)
	}

	slog.Info("predictsync stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del cliente.
type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Contract ContractConfig `yaml:"contract"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Game     GameConfig     `yaml:"game"`
	Finality FinalityConfig `yaml:"finality"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// NetworkConfig describe la red objetivo y los endpoints conocidos.
type NetworkConfig struct {
	RPCURL    string            `yaml:"rpc_url"`
	ChainID   uint64            `yaml:"chain_id"`
	Endpoints map[uint64]string `yaml:"endpoints"` // chain id → URL, para SwitchNetwork
}

// ContractConfig identifica el contrato del juego y el de consenso.
type ContractConfig struct {
	Address          string `yaml:"address"`
	ConsensusAddress string `yaml:"consensus_address"` // vacío = el de studio
}

// WalletConfig contiene la clave local. Mejor vía WALLET_PRIVATE_KEY en .env.
type WalletConfig struct {
	PrivateKey string `yaml:"private_key"`
}

// GameConfig son los parámetros del juego.
type GameConfig struct {
	Symbol                 string `yaml:"symbol"`
	DurationSeconds        int    `yaml:"duration_seconds"`
	MinDeposit             int64  `yaml:"min_deposit"`
	MinStake               int64  `yaml:"min_stake"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds"`
}

// FinalityConfig controla el polling de estado de las escrituras.
type FinalityConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	MaxRetries int `yaml:"max_retries"`
}

// StorageConfig controla dónde se persiste el diario.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// ServerConfig controla el presenter WebSocket. Vacío = desactivado.
type ServerConfig struct {
	WSAddr string `yaml:"ws_addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un path vacío arranca solo con env + defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// RefreshInterval devuelve el periodo del scheduler.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Game.RefreshIntervalSeconds) * time.Second
}

// Duration devuelve la duración por defecto de una predicción.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.Game.DurationSeconds) * time.Second
}

// FinalityInterval devuelve el intervalo entre polls de estado.
func (c *Config) FinalityInterval() time.Duration {
	return time.Duration(c.Finality.IntervalMS) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WALLET_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		cfg.Contract.Address = v
	}
	if v := os.Getenv("GENLAYER_RPC_URL"); v != "" {
		cfg.Network.RPCURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Network.RPCURL == "" {
		cfg.Network.RPCURL = "https://studio.genlayer.com/api"
	}
	if cfg.Network.ChainID == 0 {
		cfg.Network.ChainID = 61999
	}
	if cfg.Network.Endpoints == nil {
		cfg.Network.Endpoints = map[uint64]string{}
	}
	// la red objetivo siempre tiene endpoint para poder cambiar a ella
	if _, ok := cfg.Network.Endpoints[cfg.Network.ChainID]; !ok {
		cfg.Network.Endpoints[cfg.Network.ChainID] = cfg.Network.RPCURL
	}
	if cfg.Game.Symbol == "" {
		cfg.Game.Symbol = "BTC"
	}
	if cfg.Game.DurationSeconds <= 0 {
		cfg.Game.DurationSeconds = 60
	}
	if cfg.Game.MinDeposit <= 0 {
		cfg.Game.MinDeposit = 100
	}
	if cfg.Game.MinStake <= 0 {
		cfg.Game.MinStake = 10
	}
	if cfg.Game.RefreshIntervalSeconds <= 0 {
		cfg.Game.RefreshIntervalSeconds = 10
	}
	if cfg.Finality.IntervalMS <= 0 {
		cfg.Finality.IntervalMS = 5000
	}
	if cfg.Finality.MaxRetries <= 0 {
		cfg.Finality.MaxRetries = 24
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "predictsync.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	StatusTTL time.Duration `yaml:"status_ttl"` // read-through status cache TTL
}

// StoreConfig selects the order store binding: the embedded Postgres-backed
// reference store or a remote store reached over HTTP.
type StoreConfig struct {
	Mode   string `yaml:"mode"` // local | remote
	URL    string `yaml:"url"`  // remote base URL, e.g. https://orders.internal
	APIKey string `yaml:"api_key"`
}

type GatewayConfig struct {
	Driver     string `yaml:"driver"` // http | noop
	BaseURL    string `yaml:"base_url"`
	MerchantID string `yaml:"merchant_id"`
	Sandbox    bool   `yaml:"sandbox"`
}

// EngineConfig tunes the reconciliation core.
type EngineConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`   // cadence of status rounds
	MaxRounds      int           `yaml:"max_rounds"`      // bounded poll budget
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"` // host confirmation prompt timeout
	ParamsTTL      time.Duration `yaml:"params_ttl"`      // gateway params lifetime
	OrderTTL       time.Duration `yaml:"order_ttl"`       // default order deadline
	Workers        int           `yaml:"workers"`         // background attempt runners
}

type WebConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`    // how often to scan
	StaleAfter time.Duration `yaml:"stale_after"` // how old an unsettled order must be
	Batch      int           `yaml:"batch"`
}

type NotifyConfig struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Store    StoreConfig    `yaml:"store"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Engine   EngineConfig   `yaml:"engine"`
	Web      WebConfig      `yaml:"web"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Notify   NotifyConfig   `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Store.Mode == "local" && cfg.Database.URL == "" {
		return nil, errors.New("database.url is required for store.mode=local")
	}
	if cfg.Store.Mode == "remote" && cfg.Store.URL == "" {
		return nil, errors.New("store.url is required for store.mode=remote")
	}
	if cfg.Web.JWTSecret == "" && !dev {
		return nil, errors.New("web.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.StatusTTL <= 0 {
		cfg.Redis.StatusTTL = 30 * time.Second
	}
	if cfg.Store.Mode == "" {
		cfg.Store.Mode = "local"
	}
	if cfg.Gateway.Driver == "" {
		cfg.Gateway.Driver = "noop"
	}
	if cfg.Engine.PollInterval <= 0 {
		cfg.Engine.PollInterval = time.Second
	}
	if cfg.Engine.MaxRounds <= 0 {
		cfg.Engine.MaxRounds = 5
	}
	if cfg.Engine.ConfirmTimeout <= 0 {
		cfg.Engine.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.Engine.ParamsTTL <= 0 {
		cfg.Engine.ParamsTTL = 2 * time.Minute
	}
	if cfg.Engine.OrderTTL <= 0 {
		cfg.Engine.OrderTTL = 15 * time.Minute
	}
	if cfg.Engine.Workers <= 0 {
		cfg.Engine.Workers = 8
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.TokenTTL <= 0 {
		cfg.Web.TokenTTL = 24 * time.Hour
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Minute
	}
	if cfg.Sweeper.StaleAfter <= 0 {
		cfg.Sweeper.StaleAfter = 10 * time.Minute
	}
	if cfg.Sweeper.Batch <= 0 {
		cfg.Sweeper.Batch = 200
	}
}

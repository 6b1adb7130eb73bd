package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Network names accepted in STELLAR_NETWORK.
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
	NetworkPublic  = "public"
	NetworkMemory  = "memory"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"polo-core-api"`
	Version  string `env:"APP_VERSION" envDefault:"1.0.0"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`

	// EncryptionSecret is the hex encoded 32-byte key for custody secrets.
	EncryptionSecret string `env:"ENCRYPTION_SECRET,required,notEmpty,unset"`
	// SponsorSecret is the Stellar seed (S...) of the funding account.
	SponsorSecret     string        `env:"SPONSOR_SECRET_KEY,required,notEmpty,unset"`
	SessionSigningKey string        `env:"SESSION_SIGNING_KEY,required,notEmpty,unset"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	OTPTTL            time.Duration `env:"OTP_TTL" envDefault:"10m"`

	Network         string        `env:"STELLAR_NETWORK" envDefault:"testnet"`
	HorizonURL      string        `env:"HORIZON_URL"`
	HorizonTimeout  time.Duration `env:"HORIZON_TIMEOUT" envDefault:"20s"`
	HistoryMaxLimit int           `env:"HISTORY_MAX_LIMIT" envDefault:"50"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Network = strings.ToLower(cfg.Network)

	switch cfg.Network {
	case NetworkTestnet, NetworkMainnet, NetworkPublic, NetworkMemory:
	default:
		return Config{}, fmt.Errorf("invalid STELLAR_NETWORK %q", cfg.Network)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.Network == NetworkMemory {
			return Config{}, fmt.Errorf("STELLAR_NETWORK=memory is only allowed in development")
		}
	}

	if cfg.HistoryMaxLimit <= 0 {
		cfg.HistoryMaxLimit = 50
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the process runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_SECRET", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	t.Setenv("SPONSOR_SECRET_KEY", "SDUMMYSEEDVALUEFORCONFIGPARSINGONLY")
	t.Setenv("SESSION_SIGNING_KEY", "config-test-signing-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("STELLAR_NETWORK", "TESTNET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network != NetworkTestnet {
		t.Fatalf("expected network to be lower-cased, got %q", cfg.Network)
	}
	if cfg.OTPTTL != 10*time.Minute || cfg.SessionTTL != time.Hour || cfg.TenantCacheTTL != 5*time.Minute {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
	if cfg.HistoryMaxLimit != 50 || cfg.HorizonTimeout != 20*time.Second {
		t.Fatalf("unexpected ledger defaults: %+v", cfg)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ENCRYPTION_SECRET", "")
	t.Setenv("SPONSOR_SECRET_KEY", "")
	t.Setenv("SESSION_SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing secrets to fail")
	}
}

func TestLoadProductionNeedsStores(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected production without stores to fail")
	}

	// Load unsets the secrets it consumed.
	setRequired(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/polo")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STELLAR_NETWORK", "memory")
	if _, err := Load(); err == nil {
		t.Fatal("expected the memory network to be rejected in production")
	}
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("STELLAR_NETWORK", "futurenet")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown network to fail")
	}
}

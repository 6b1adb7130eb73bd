// Package infra connects to the backing stores.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxPoolConns      = 20
	poolHealthCheck   = 30 * time.Second
	maxConnLifetime   = time.Hour
	postgresConnectTO = 10 * time.Second
)

// NewPostgresPool configures the custody store pool and verifies it can
// reach the database.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns < maxPoolConns {
		cfg.MaxConns = maxPoolConns
	}
	cfg.HealthCheckPeriod = poolHealthCheck
	cfg.MaxConnLifetime = maxConnLifetime

	ctx, cancel := context.WithTimeout(ctx, postgresConnectTO)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

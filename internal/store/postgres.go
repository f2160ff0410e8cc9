// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package store manages the PostgreSQL schema and connection pool used by the
// postgres account backend.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// OpenPool connects to PostgreSQL and verifies the connection with a ping.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_PING_FAILED").
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}
	return pool, nil
}

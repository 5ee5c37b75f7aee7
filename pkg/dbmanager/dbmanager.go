// Package dbmanager opens bun database handles from application
// configuration. Postgres connects through pgx; sqlite through the
// sqliteshim driver, so file-backed and in-memory databases both work
// without cgo.
package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jackc/pgx/v5"

	"github.com/viewspec/viewspec/pkg/config"
	"github.com/viewspec/viewspec/pkg/logger"
)

const (
	connectTimeout = 10 * time.Second
	retryAttempts  = 3
	retryBaseDelay = 1 * time.Second
)

// Open connects to the configured database and returns a bun handle.
// Postgres connections are retried with exponential backoff; sqlite
// opens locally and needs none.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return openPostgres(ctx, cfg)
	case "sqlite", "":
		return openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	pgxCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}

	sqldb := stdlib.OpenDB(*pgxCfg)
	applyPool(sqldb, cfg)

	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt, retryBaseDelay, 10*time.Second)
			logger.Info("Retrying postgres connection: attempt=%d/%d, delay=%v", attempt+1, retryAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				sqldb.Close()
				return nil, ctx.Err()
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		lastErr = sqldb.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			break
		}
		logger.Warn("Failed to ping postgres database: %v", lastErr)
	}
	if lastErr != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", retryAttempts, lastErr)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	logger.Info("Postgres connection established: host=%s, database=%s", pgxCfg.Host, pgxCfg.Database)
	return db, nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One writer avoids "database is locked" errors unless the config
	// asks for more.
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		sqldb.SetMaxOpenConns(1)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = sqldb.PingContext(pingCtx)
	cancel()
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := sqldb.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		logger.Warn("Failed to enable WAL mode for sqlite: %v", err)
	}
	if _, err := sqldb.ExecContext(ctx, "PRAGMA busy_timeout=120000"); err != nil {
		logger.Warn("Failed to set busy timeout for sqlite: %v", err)
	}
	if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		logger.Warn("Failed to enable foreign keys for sqlite: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	logger.Info("SQLite connection established: dsn=%s", dsn)
	return db, nil
}

func applyPool(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// backoff returns an exponentially increasing delay capped at max.
func backoff(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > max {
		return max
	}
	return delay
}

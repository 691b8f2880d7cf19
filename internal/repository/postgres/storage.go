// Package postgres implements the storage surface on a pgx connection pool.
// All durable state (tasks, reminders, templates, undo records) lives here.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskbot/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const slowQueryThreshold = 100 * time.Millisecond

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

type PoolConfig struct {
	MaxConns    int32
	MinConns    int32
	IdleTimeout time.Duration
}

func New(ctx context.Context, connString string, poolCfg PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse connection string", err)
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = poolCfg.MaxConns
	config.MinConns = poolCfg.MinConns
	config.MaxConnIdleTime = poolCfg.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: closed all PostgreSQL connections")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	// golang-migrate picks its pgx/v5 driver by the pgx5 URL scheme.
	url := strings.Replace(s.connString, "postgres://", "pgx5://", 1)
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("Repository: migrations applied")
	return nil
}

func warnSlow(op string, start time.Time) {
	if elapsed := time.Since(start); elapsed > slowQueryThreshold {
		logger.Warn("Repository: slow query",
			zap.String("operation", op),
			zap.Duration("ms", elapsed))
	}
}

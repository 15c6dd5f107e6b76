package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

type PostgresDB struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

func NewPostgresDB(ctx context.Context, cfg Config, log logger.Logger) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection pool established",
		"max_conns", poolConfig.MaxConns,
		"min_conns", poolConfig.MinConns,
	)

	return &PostgresDB{
		pool: pool,
		log:  log,
	}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		notification_id UUID PRIMARY KEY,
		emergency_type  TEXT NOT NULL,
		priority        TEXT NOT NULL,
		message         TEXT NOT NULL,
		zone            TEXT NOT NULL DEFAULT '',
		metadata        JSONB,
		global_status   TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_outcomes (
		delivery_id     UUID PRIMARY KEY,
		notification_id UUID NOT NULL,
		user_id         TEXT NOT NULL,
		channel         TEXT NOT NULL,
		status          TEXT NOT NULL,
		attempts        INT NOT NULL DEFAULT 1,
		error_message   TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		confirmed_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_outcomes_notification
		ON delivery_outcomes (notification_id)`,
}

// Migrate creates the tables used by the repository package.
func (p *PostgresDB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	p.log.Info("Database schema ready", "statements", len(schema))
	return nil
}

func (p *PostgresDB) Close() {
	p.log.Info("Closing database connection pool")
	p.pool.Close()
}

func (p *PostgresDB) Pool() *pgxpool.Pool {
	return p.pool
}

// Health check
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stats returns pool statistics
func (p *PostgresDB) Stats() map[string]interface{} {
	stat := p.pool.Stat()
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"idle_conns":     stat.IdleConns(),
		"acquired_conns": stat.AcquiredConns(),
	}
}

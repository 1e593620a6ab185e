// Package postgres implements the engine repository against the shared
// scheduling database. The engine owns its run bookkeeping tables (created
// by the embedded migrations) and reads or writes the legacy scheduling
// tables in place; it never migrates those.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/pressly/goose/v3"

	"github.com/rotaforge/scheduler/internal/config"
	"github.com/rotaforge/scheduler/internal/engine"
	"github.com/rotaforge/scheduler/internal/retry"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Command budgets by statement role. Bulk statements may churn through
// thousands of rows under row locks shared with the OLTP application.
const (
	defaultQueryTimeout = 30 * time.Second
	defaultBulkTimeout  = 300 * time.Second
)

// Store implements engine.Repository on a pgx connection pool. Transient
// faults are retried internally with exponential backoff; callers only see
// terminal errors.
type Store struct {
	pool   *pgxpool.Pool
	exec   *retry.Executor
	logger *slog.Logger

	queryTimeout time.Duration
	bulkTimeout  time.Duration
}

var _ engine.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	logger       *slog.Logger
	retry        retry.Config
	queryTimeout time.Duration
	bulkTimeout  time.Duration
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetryConfig overrides the transient-fault retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *storeOptions) { o.retry = cfg }
}

// WithTimeouts overrides the per-operation command budgets. Zero keeps the
// default for that role.
func WithTimeouts(query, bulk time.Duration) Option {
	return func(o *storeOptions) {
		if query > 0 {
			o.queryTimeout = query
		}
		if bulk > 0 {
			o.bulkTimeout = bulk
		}
	}
}

// New connects to the database, optionally applies the engine's own
// migrations, and returns a ready Store.
func New(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.DSN, o.logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	maxConns := int32(cfg.MaxOpenConns)
	if maxConns <= 0 {
		maxConns = 25
	}
	minConns := int32(cfg.MaxIdleConns)
	if minConns <= 0 {
		minConns = 5
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 1 * time.Minute
	}

	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = connMaxLifetime
	poolConfig.MaxConnIdleTime = connMaxIdleTime

	// All engine timestamps are wall-clock values tagged UTC; pinning the
	// session zone keeps date casts in SQL consistent with them.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET TIMEZONE='UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStore(pool, o), nil
}

// NewWithPool wraps an existing pool, for tests.
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Store {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newStore(pool, o)
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		logger:       slog.Default(),
		retry:        retry.DefaultConfig(),
		queryTimeout: defaultQueryTimeout,
		bulkTimeout:  defaultBulkTimeout,
	}
}

func newStore(pool *pgxpool.Pool, o *storeOptions) *Store {
	return &Store{
		pool:         pool,
		exec:         retry.New(o.retry, o.logger),
		logger:       o.logger,
		queryTimeout: o.queryTimeout,
		bulkTimeout:  o.bulkTimeout,
	}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// query runs op under the retry policy with a whole-operation deadline
// covering all attempts.
func (s *Store) query(ctx context.Context, name string, timeout time.Duration, op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.exec.Do(ctx, name, op)
}

// runMigrations applies the engine-owned migrations. goose drives a
// temporary database/sql connection; the pool is created afterwards.
func runMigrations(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database for migrations: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

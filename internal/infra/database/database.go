// Package database is the relational store behind xueban.
//
// It runs on an embedded SQLite file by default and on PostgreSQL when a DSN
// is configured. All multi-row mutations go through RunInTx, which retries
// serialization failures and lost balance compare-and-swaps.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xueban-network/xueban/internal/infra/database/migrations"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultTxTimeout = 15 * time.Second

// Config selects and tunes the database backend.
type Config struct {
	Driver       string `toml:"driver"`         // "sqlite" or "postgres"
	Path         string `toml:"path"`           // SQLite file
	DSN          string `toml:"dsn"`            // PostgreSQL connection string
	MaxOpenConns int    `toml:"max_open_conns"` // PostgreSQL only; SQLite uses one
}

// DB is an open store. The embedded Queries run outside any transaction.
type DB struct {
	*Queries

	bun    *bun.DB
	driver string
	logger *zap.Logger
	retry  RetryPolicy
}

// Open connects to the configured backend and applies pending migrations.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	logger = logger.Named("database")

	var (
		bdb *bun.DB
		err error
	)
	switch cfg.Driver {
	case "", DriverSQLite:
		bdb, err = openSQLite(cfg.Path)
		cfg.Driver = DriverSQLite
	case DriverPostgres:
		bdb, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := bdb.PingContext(ctx); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	bdb.AddQueryHook(NewHook(logger))

	db := &DB{
		Queries: &Queries{idb: bdb},
		bun:     bdb,
		driver:  cfg.Driver,
		logger:  logger,
		retry:   DefaultRetryPolicy(),
	}

	if _, err := db.Migrate(ctx); err != nil {
		bdb.Close()
		return nil, err
	}

	logger.Info("Database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

func openSQLite(path string) (*bun.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes every transaction in the process.
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func openPostgres(cfg Config) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: empty dsn")
	}
	pgcfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	sqldb := stdlib.OpenDB(*pgcfg)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	sqldb.SetConnMaxLifetime(30 * time.Minute)

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Migrate applies pending migrations and returns the names it applied.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	migrator := migrate.NewMigrator(db.bun, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var applied []string
	if !group.IsZero() {
		for _, m := range group.Migrations {
			applied = append(applied, m.Name)
		}
		db.logger.Info("Applied migrations", zap.String("group", group.String()))
	}
	return applied, nil
}

// AppliedMigrations lists the migrations recorded as applied, oldest first.
func (db *DB) AppliedMigrations(ctx context.Context) ([]string, error) {
	migrator := migrate.NewMigrator(db.bun, migrations.Migrations)
	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	var names []string
	for _, m := range ms.Applied() {
		names = append(names, m.Name)
	}
	slices.Sort(names)
	return names, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	if err := db.bun.Close(); err != nil {
		db.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}
	return nil
}

// Driver returns the active driver name.
func (db *DB) Driver() string { return db.driver }

// RunInTx runs fn in one transaction and commits when it returns nil.
// fn must use only the Queries it is given; on SQLite the outer DB shares
// the single connection and would block. Retryable failures re-run fn from
// the start, so fn must not have side effects outside the transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	var opts *sql.TxOptions
	if db.bun.Dialect().Name() == dialect.PG {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	return withRetry(ctx, db.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()

		return db.bun.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, &Queries{idb: tx})
		})
	}, func(attempt int, err error) {
		db.logger.Debug("Retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
	})
}

// Queries are typed statements bound to a connection or a transaction.
type Queries struct {
	idb bun.IDB
}

// forUpdate adds a row lock where the dialect supports one. SQLite locks
// the whole database for the duration of a write transaction instead.
func (q *Queries) forUpdate(sel *bun.SelectQuery) *bun.SelectQuery {
	if q.idb.Dialect().Name() == dialect.PG {
		return sel.For("UPDATE")
	}
	return sel
}

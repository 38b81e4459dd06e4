// Package sqlite provides the SQLite-backed store engine for embedded
// deployments. This package uses modernc.org/sqlite, a pure Go SQLite
// implementation that doesn't require CGO, making it ideal for on-device,
// single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/store"
)

// Config holds SQLite connection settings.
type Config struct {
	// Path is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum connection lifetime.
	ConnMaxLifetime time.Duration

	// JournalMode sets the SQLite journal mode (WAL recommended).
	JournalMode string

	// BusyTimeout sets the busy timeout in milliseconds.
	BusyTimeout int

	// CacheSize sets the page cache size (negative = KB, positive = pages).
	CacheSize int

	// SynchronousMode sets the synchronous mode (NORMAL, FULL, OFF).
	SynchronousMode string
}

// DefaultConfig returns a default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	return Config{
		Path:            dbPath,
		MaxOpenConns:    1, // SQLite works best with single writer
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		JournalMode:     "WAL",
		BusyTimeout:     5000,  // 5 seconds
		CacheSize:       -2000, // 2MB
		SynchronousMode: "NORMAL",
	}
}

// DB wraps a sql.DB connection for SQLite.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
	path   string
}

// NewDB creates a new SQLite database connection.
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	// Add pragmas to connection string
	connStr := fmt.Sprintf(
		"%s?_journal_mode=%s&_busy_timeout=%d&_cache_size=%d&_synchronous=%s&_foreign_keys=ON",
		cfg.Path,
		cfg.JournalMode,
		cfg.BusyTimeout,
		cfg.CacheSize,
		cfg.SynchronousMode,
	)

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Str("journal_mode", cfg.JournalMode).
		Int("max_conns", cfg.MaxOpenConns).
		Msg("connected to SQLite database")

	return &DB{
		db:     db,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.logger.Info().Msg("closing SQLite connection")
	return db.db.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Health checks the database connection health.
func (db *DB) Health(ctx context.Context) error {
	return db.Ping(ctx)
}

// DB returns the underlying sql.DB.
func (db *DB) DB() *sql.DB {
	return db.db
}

// WithTx executes a function within a transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ExecContext executes a query without returning rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// Migrate applies the schema, gated by a version table. Creation is
// idempotent: collections and indexes that already exist are skipped, so a
// version bump only creates what's missing. All store operations are
// rejected by the caller until this completes.
func (db *DB) Migrate(ctx context.Context, schema store.Schema) error {
	_, err := db.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err = db.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	db.logger.Info().
		Int("current_version", currentVersion).
		Int("schema_version", schema.Version).
		Msg("checking migrations")

	if currentVersion >= schema.Version {
		return nil
	}

	for i := range schema.Collections {
		if err := db.createCollection(ctx, &schema.Collections[i]); err != nil {
			return err
		}
	}

	if _, err := db.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?)`, schema.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	db.logger.Info().Int("version", schema.Version).Msg("applied migration")
	return nil
}

// createCollection renders and executes idempotent DDL for one collection.
func (db *DB) createCollection(ctx context.Context, c *store.Collection) error {
	cols := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
	for _, idx := range c.Indexes {
		cols = append(cols, fmt.Sprintf("%s %s", idx.Column, columnType(idx.Kind)))
	}
	cols = append(cols, "doc TEXT NOT NULL")

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.Name, strings.Join(cols, ", "))
	if _, err := db.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.Name, err)
	}

	for _, idx := range c.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		ddl := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			unique, c.Name, idx.Name, c.Name, idx.Column)
		if _, err := db.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", idx.Name, c.Name, err)
		}
	}

	db.logger.Debug().Str("collection", c.Name).Msg("collection ready")
	return nil
}

// columnType maps an index kind to a SQLite column type.
func columnType(k store.IndexKind) string {
	switch k {
	case store.KindInt:
		return "INTEGER"
	case store.KindReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

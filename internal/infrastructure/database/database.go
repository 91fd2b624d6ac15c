package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
	pingTimeout     = 5 * time.Second
)

// DB is the archive's SQLite handle. SQLite allows one writer, so the pool
// is held to a single connection.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at cfg.Path and verifies it.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if cfg.Path != MemoryPath {
		// An in-memory database lives only as long as its connection.
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if cfg.Path != MemoryPath {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // best effort
	}
	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// dataSource builds the go-sqlite3 DSN with the configured pragmas.
func dataSource(cfg config.DatabaseConfig) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("database path is empty")
	}

	busy := cfg.BusyTimeout * 1000
	if cfg.Path == MemoryPath {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d&_foreign_keys=on", busy), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, busy)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// InTx runs fn in a transaction, committing if it returns nil.
func (db *DB) InTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

func TestOpen(t *testing.T) {
	t.Run("creates nested file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "data", "nested", "rig.db")

		db, err := Open(config.DatabaseConfig{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // test cleanup

		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("database file not created: %v", err)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("in memory", func(t *testing.T) {
		db := openTestDB(t)
		if db.Path() != MemoryPath {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := Open(config.DatabaseConfig{}); err == nil {
			t.Fatal("Open() with empty path should fail")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Path: MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	var nilDB *DB
	if err := nilDB.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestInTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatal(err)
	}

	insert := func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO t (v) VALUES (1)")
		return err
	}
	if err := db.InTx(ctx, insert); err != nil {
		t.Fatalf("InTx() commit error = %v", err)
	}

	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx *sql.Tx) error {
		if err := insert(tx); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1 (second insert rolled back)", n)
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Path: MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

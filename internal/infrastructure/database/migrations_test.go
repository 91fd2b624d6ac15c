package database

import (
	"context"
	"embed"
	"io/fs"
	"testing"
	"testing/fstest"
)

//go:embed testdata/*.sql
var testdataFS embed.FS

func testMigrations(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(testdataFS, "testdata")
	if err != nil {
		t.Fatal(err)
	}
	return sub
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations(t)

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"widgets", "gadgets", "schema_migrations"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing after Migrate()", table)
		}
	}

	// Idempotent.
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("status = %d applied, %d pending; want 2, 0", len(applied), len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations(t)

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatal(err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "gadgets") {
		t.Error("gadgets should be dropped")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("widgets should remain")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Name != "gadgets" {
		t.Errorf("pending = %+v, want gadgets", pending)
	}
}

func TestMigrate_FailureKeepsEarlierSteps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260102_000000_bad.up.sql": {Data: []byte("CREATE TABLE;")},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() should fail on bad SQL")
	}
	if !tableExists(t, db, "ok") {
		t.Error("earlier migration should stay committed")
	}
	applied, _, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestMigrate_Empty(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background(), fstest.MapFS{}); err != nil {
		t.Errorf("Migrate() on empty fs error = %v", err)
	}
	if err := db.MigrateDown(context.Background(), fstest.MapFS{}); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file    string
		version string
		name    string
		up      bool
		ok      bool
	}{
		{"20261015_100000_archive.up.sql", "20261015_100000", "archive", true, true},
		{"20261015_100000_archive.down.sql", "20261015_100000", "archive", false, true},
		{"20261015_100000_two_words.up.sql", "20261015_100000", "two_words", true, true},
		{"20261015_100000.up.sql", "20261015_100000", "20261015_100000", true, true},
		{"20261015_100000_archive.sql", "", "", false, false},
		{"README.md", "", "", false, false},
		{"nounderscore.up.sql", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := ParseMigrationFilename(tt.file)
			if ok != tt.ok || version != tt.version || name != tt.name || up != tt.up {
				t.Errorf("ParseMigrationFilename(%q) = (%q, %q, %v, %v), want (%q, %q, %v, %v)",
					tt.file, version, name, up, ok, tt.version, tt.name, tt.up, tt.ok)
			}
		})
	}
}

// Package database opens the local SQLite archive and applies its schema.
//
// The connection uses WAL mode and a busy timeout from config, and is held
// to a single connection since SQLite has one writer. Migrations are plain
// SQL files passed in as an fs.FS (see the migrations package), applied in
// version order and recorded in schema_migrations.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database

// Package database provides the SQLite connection that stores capture
// history.
//
// The schema is owned by embedded migrations (see package migrations),
// applied in filename order at start-up:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each one runs in its own transaction and is
// recorded in schema_migrations.
package database

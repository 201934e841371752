// Package database opens the SQLite store and runs embedded schema
// migrations.
//
// The pool is pinned to one connection because SQLite has a single writer;
// WAL mode keeps reads flowing while that writer works. The file is chmod
// 0600 since host and command rows can reference credentials.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive only: new columns are nullable or carry defaults,
// and columns are never dropped or renamed. Each version ships an .up.sql
// and a .down.sql, applied in its own transaction.
package database

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "edgeflow.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

func TestOpenCreatesFileAndDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "edgeflow.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close() //nolint:errcheck

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if got := db.Path(); got != dbPath {
		t.Errorf("Path() = %q, want %q", got, dbPath)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "edgeflow.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close after nil: %v", err)
	}
}

func TestExecAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE samples (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
	); err != nil {
		t.Fatalf("create table: %v", err)
	}

	res, err := db.ExecContext(ctx, "INSERT INTO samples (name) VALUES (?)", "first")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id, _ := res.LastInsertId(); id != 1 {
		t.Errorf("LastInsertId = %d, want 1", id)
	}

	var name string
	if err := db.QueryRowContext(ctx,
		"SELECT name FROM samples WHERE id = 1",
	).Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "first" {
		t.Errorf("name = %q, want %q", name, "first")
	}
}

func TestTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE txtest (id INTEGER PRIMARY KEY, value TEXT)",
	); err != nil {
		t.Fatalf("create table: %v", err)
	}

	countWhere := func(value string) int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM txtest WHERE value = ?", value,
		).Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}

	t.Run("commit persists", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx: %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO txtest (value) VALUES (?)", "kept",
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if n := countWhere("kept"); n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx: %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO txtest (value) VALUES (?)", "dropped",
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback: %v", err)
		}
		if n := countWhere("dropped"); n != 0 {
			t.Errorf("rows = %d, want 0", n)
		}
	})
}

func TestPoolPinnedToSingleConn(t *testing.T) {
	db := openTestDB(t)
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

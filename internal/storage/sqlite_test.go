package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", "task_queue").Scan(&name); err != nil {
		t.Fatalf("table task_queue missing: %v", err)
	}
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?;", "task_queue_pending_dedupe_idx").Scan(&name); err != nil {
		t.Fatalf("pending dedupe unique index missing: %v", err)
	}
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/femtomc/jwz/internal/journal"
)

// testClock returns a deterministic clock advancing one millisecond
// per reading, so identifiers and timestamps are reproducible and
// strictly ordered.
func testClock() func() time.Time {
	base := time.UnixMilli(1700000000000)
	var n int64
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

// setupTestStorage lays a store directory down in a temp dir and opens
// a repository over it with a deterministic clock.
func setupTestStorage(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "messages.jsonl"), nil, 0o644); err != nil {
		t.Fatalf("failed to create log: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lock"), nil, 0o600); err != nil {
		t.Fatalf("failed to create lock file: %v", err)
	}

	j := journal.New(filepath.Join(dir, "messages.jsonl"), filepath.Join(dir, "lock"))
	store, err := New(context.Background(), filepath.Join(dir, "messages.db"), j, WithClock(testClock()))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

// reopenTestStorage opens a second repository over an existing store
// directory, as a fresh process would.
func reopenTestStorage(t *testing.T, dir string) *SQLiteStorage {
	t.Helper()

	j := journal.New(filepath.Join(dir, "messages.jsonl"), filepath.Join(dir, "lock"))
	store, err := New(context.Background(), filepath.Join(dir, "messages.db"), j, WithClock(testClock()))
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func logSize(t *testing.T, dir string) int64 {
	t.Helper()
	info, err := os.Stat(filepath.Join(dir, "messages.jsonl"))
	if err != nil {
		t.Fatalf("failed to stat log: %v", err)
	}
	return info.Size()
}

func persistedOffset(t *testing.T, store *SQLiteStorage) int64 {
	t.Helper()
	off, err := store.persistedOffset(context.Background())
	if err != nil {
		t.Fatalf("failed to read offset: %v", err)
	}
	return off
}

// After every successful write the persisted offset equals the byte
// length of the log.
func TestOffsetStaysTight(t *testing.T) {
	store, dir := setupTestStorage(t)

	mustCreateTopic(t, store, "tasks")
	if got, want := persistedOffset(t, store), logSize(t, dir); got != want {
		t.Errorf("after topic: offset %d, log %d", got, want)
	}

	r := mustPost(t, store, "tasks", "", "root")
	if got, want := persistedOffset(t, store), logSize(t, dir); got != want {
		t.Errorf("after message: offset %d, log %d", got, want)
	}

	mustPost(t, store, "tasks", r, "reply")
	if got, want := persistedOffset(t, store), logSize(t, dir); got != want {
		t.Errorf("after reply: offset %d, log %d", got, want)
	}
}

// The log is the source of truth: deleting the index and reopening
// reproduces the same query results.
func TestRebuildAfterIndexDeletion(t *testing.T) {
	store, dir := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	r := mustPost(t, store, "tasks", "", "root")
	a := mustPost(t, store, "tasks", r, "reply a")
	b := mustPost(t, store, "tasks", a, "reply b")

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(filepath.Join(dir, "messages.db"+suffix))
	}

	reopened := reopenTestStorage(t, dir)

	msgs, err := reopened.ListMessages(ctx, "tasks", 10)
	if err != nil {
		t.Fatalf("failed to list after rebuild: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != r {
		t.Fatalf("rebuilt listing should contain the root only")
	}

	thread, err := reopened.Thread(ctx, r)
	if err != nil {
		t.Fatalf("failed to load thread after rebuild: %v", err)
	}
	if len(thread) != 3 || thread[0].ID != r || thread[1].ID != a || thread[2].ID != b {
		t.Errorf("rebuilt thread order wrong")
	}

	// Full-text search works against the rebuilt index too.
	found, err := reopened.SearchMessages(ctx, "reply a", "", 10)
	if err != nil {
		t.Fatalf("failed to search after rebuild: %v", err)
	}
	if len(found) != 1 || found[0].ID != a {
		t.Errorf("search against rebuilt index should find reply a")
	}

	if got, want := persistedOffset(t, reopened), logSize(t, dir); got != want {
		t.Errorf("rebuilt offset %d, log %d", got, want)
	}
}

// Truncating the log below the persisted offset triggers clear-first
// replay from offset zero.
func TestTruncationTriggersRebuild(t *testing.T) {
	store, dir := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	afterTopic := logSize(t, dir)
	mustPost(t, store, "tasks", "", "will be truncated away")

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	// External actor rewinds the log to just the topic record.
	if err := os.Truncate(filepath.Join(dir, "messages.jsonl"), afterTopic); err != nil {
		t.Fatalf("failed to truncate log: %v", err)
	}

	reopened := reopenTestStorage(t, dir)

	msgs, err := reopened.ListMessages(ctx, "tasks", 10)
	if err != nil {
		t.Fatalf("failed to list after truncation: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("truncated-away message still present after rebuild")
	}
	if got := persistedOffset(t, reopened); got != afterTopic {
		t.Errorf("offset %d after truncation rebuild, want %d", got, afterTopic)
	}

	var ftsCount int
	if err := reopened.UnderlyingDB().QueryRow(`SELECT COUNT(*) FROM messages_fts`).Scan(&ftsCount); err != nil {
		t.Fatalf("failed to count fts rows: %v", err)
	}
	if ftsCount != 0 {
		t.Errorf("fts still carries %d rows after clear-first rebuild", ftsCount)
	}
}

// Lines that fail to parse are dropped; their bytes still count toward
// the offset so replay never sticks.
func TestMalformedLinesSkipped(t *testing.T) {
	store, dir := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	mustPost(t, store, "tasks", "", "good message")

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	logPath := filepath.Join(dir, "messages.jsonl")
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	// A garbage line and a torn record with no terminating newline.
	if _, err := f.WriteString("not json at all\n" + `{"type":"message","id":"torn`); err != nil {
		t.Fatalf("failed to append garbage: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close log: %v", err)
	}

	reopened := reopenTestStorage(t, dir)

	msgs, err := reopened.ListMessages(ctx, "tasks", 10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected the one good message, got %d", len(msgs))
	}
	if got, want := persistedOffset(t, reopened), logSize(t, dir); got != want {
		t.Errorf("offset %d did not advance past malformed bytes to %d", got, want)
	}
}

// Re-replay of the same records is idempotent: rows and the full-text
// index do not duplicate.
func TestReplayIdempotent(t *testing.T) {
	store, dir := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	mustPost(t, store, "tasks", "", "once only")

	// Force a second full replay by rewinding the offset.
	if _, err := store.UnderlyingDB().Exec(
		`UPDATE meta SET value = '0' WHERE key = 'jsonl_offset'`); err != nil {
		t.Fatalf("failed to rewind offset: %v", err)
	}
	if err := store.CatchUp(ctx); err != nil {
		t.Fatalf("failed to catch up: %v", err)
	}

	db := store.UnderlyingDB()
	var msgCount, ftsCount, topicCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages_fts`).Scan(&ftsCount); err != nil {
		t.Fatalf("failed to count fts rows: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM topics`).Scan(&topicCount); err != nil {
		t.Fatalf("failed to count topics: %v", err)
	}
	if msgCount != 1 || topicCount != 1 {
		t.Errorf("re-replay duplicated rows: %d messages, %d topics", msgCount, topicCount)
	}
	if ftsCount != msgCount {
		t.Errorf("fts rows (%d) out of step with message rows (%d)", ftsCount, msgCount)
	}
	if got, want := persistedOffset(t, store), logSize(t, dir); got != want {
		t.Errorf("offset %d, want %d", got, want)
	}
}

// Full-text rows stay in one-to-one correspondence with message rows.
func TestFTSCoverage(t *testing.T) {
	store, _ := setupTestStorage(t)

	mustCreateTopic(t, store, "tasks")
	r := mustPost(t, store, "tasks", "", "alpha")
	mustPost(t, store, "tasks", r, "beta")
	mustPost(t, store, "tasks", "", "gamma")

	db := store.UnderlyingDB()
	var missing int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM messages m
		WHERE m.rowid NOT IN (SELECT rowid FROM messages_fts)
	`).Scan(&missing)
	if err != nil {
		t.Fatalf("failed to compare fts coverage: %v", err)
	}
	if missing != 0 {
		t.Errorf("%d message rows missing from the full-text index", missing)
	}
}

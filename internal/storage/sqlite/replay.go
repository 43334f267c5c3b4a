package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/femtomc/jwz/internal/journal"
)

// metaOffsetKey stores the byte position in messages.jsonl up to which
// the index is caught up, as a stringified non-negative integer.
const metaOffsetKey = "jsonl_offset"

// CatchUp replays any journal suffix the index has not observed yet.
// Called on open, and cheap when there is nothing to do: the offset and
// log size are compared before any transaction is opened.
//
// Lock order matches the write path — index transaction first, then
// the file lock — so a replaying reader and an appending writer can
// never wait on each other in opposite orders. The shared lock is held
// for the whole read so a concurrent writer cannot land a partial
// record mid-read.
func (s *SQLiteStorage) CatchUp(ctx context.Context) error {
	// Unlocked peek; replayLocked re-reads both values under the locks.
	offset, err := s.persistedOffset(ctx)
	if err != nil {
		return err
	}
	size, err := s.journal.Size()
	if err != nil {
		return err
	}
	if size == offset {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := s.beginImmediate(ctx, conn); err != nil {
		return fmt.Errorf("failed to begin replay transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollback(conn)
		}
	}()

	if err := s.journal.RLock(); err != nil {
		return err
	}
	locked := true
	defer func() {
		if locked {
			_ = s.journal.Unlock()
		}
	}()

	if err := s.replayLocked(ctx, conn); err != nil {
		return err
	}

	_ = s.journal.Unlock()
	locked = false

	if err := s.commit(ctx, conn); err != nil {
		return fmt.Errorf("failed to commit replay: %w", err)
	}
	committed = true
	return nil
}

// replayLocked ingests journal records past the persisted offset into
// the index. The caller holds a lock on the lock file (shared on open,
// exclusive inside a write) and an open IMMEDIATE transaction on conn;
// the new offset is persisted inside that same transaction.
//
// A log shorter than the offset means truncation or rotation by an
// external actor: the index rows are cleared and the whole log is
// replayed from offset zero.
func (s *SQLiteStorage) replayLocked(ctx context.Context, conn *sql.Conn) error {
	offset, err := getOffset(ctx, conn)
	if err != nil {
		return err
	}
	size, err := s.journal.Size()
	if err != nil {
		return err
	}

	clearFirst := false
	if size < offset {
		clearFirst = true
		offset = 0
	}
	if size == offset && !clearFirst {
		return nil
	}

	data, err := s.journal.ReadFromLocked(offset)
	if err != nil {
		return err
	}

	if clearFirst {
		// Order preserves foreign keys: fts, messages, topics.
		// delete-all is the supported purge for an external-content
		// fts5 table.
		if _, err := conn.ExecContext(ctx, `INSERT INTO messages_fts(messages_fts) VALUES('delete-all')`); err != nil {
			return fmt.Errorf("failed to clear full-text index: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM topics`); err != nil {
			return fmt.Errorf("failed to clear topics: %w", err)
		}
	}

	// Topics before messages: a message row's foreign key needs its
	// topic row in place. Malformed lines (torn writes, foreign types)
	// are dropped; a trailing line without its newline is dropped too,
	// whether or not it parses.
	lines := bytes.Split(data, []byte{'\n'})
	// The last segment follows the final newline: empty for a fully
	// terminated log, otherwise an unterminated record.
	lines = lines[:len(lines)-1]
	var topics, messages []*journal.Record
	for _, line := range lines {
		rec := journal.DecodeLine(line)
		if rec == nil {
			continue
		}
		if rec.Type == journal.TypeTopic {
			topics = append(topics, rec)
		} else {
			messages = append(messages, rec)
		}
	}

	for _, rec := range topics {
		if err := s.applyTopicRecord(ctx, conn, rec); err != nil {
			return err
		}
	}
	for _, rec := range messages {
		if err := s.applyMessageRecord(ctx, conn, rec); err != nil {
			return err
		}
	}

	if err := setOffset(ctx, conn, offset+int64(len(data))); err != nil {
		return err
	}
	return nil
}

// applyTopicRecord applies one topic record idempotently.
func (s *SQLiteStorage) applyTopicRecord(ctx context.Context, conn *sql.Conn, rec *journal.Record) error {
	_, err := conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO topics (id, name, description, created_at)
		VALUES (?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Description, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to replay topic %s: %w", rec.ID, err)
	}
	return nil
}

// applyMessageRecord applies one message record idempotently. The FTS
// row is written only when the message insert actually created a row;
// otherwise the full-text index already carries it.
func (s *SQLiteStorage) applyMessageRecord(ctx context.Context, conn *sql.Conn, rec *journal.Record) error {
	var senderID, senderName, senderModel, senderRole any
	if rec.Sender != nil {
		senderID, senderName = rec.Sender.ID, rec.Sender.Name
		if rec.Sender.Model != "" {
			senderModel = rec.Sender.Model
		}
		if rec.Sender.Role != "" {
			senderRole = rec.Sender.Role
		}
	}
	var gitOID, gitHead, gitDirty, gitPrefix any
	if rec.Git != nil {
		gitOID, gitHead = rec.Git.OID, rec.Git.Head
		gitDirty = boolToInt(rec.Git.Dirty)
		if rec.Git.Prefix != "" {
			gitPrefix = rec.Git.Prefix
		}
	}

	res, err := conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (
			id, topic_id, parent_id, body, created_at,
			sender_id, sender_name, sender_model, sender_role,
			git_oid, git_head, git_dirty, git_prefix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TopicID, rec.ParentID, rec.Body, rec.CreatedAt,
		senderID, senderName, senderModel, senderRole,
		gitOID, gitHead, gitDirty, gitPrefix)
	if err != nil {
		return fmt.Errorf("failed to replay message %s: %w", rec.ID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read replay changes: %w", err)
	}
	if inserted > 0 {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO messages_fts (rowid, body)
			VALUES ((SELECT rowid FROM messages WHERE id = ?), ?)
		`, rec.ID, rec.Body)
		if err != nil {
			return fmt.Errorf("failed to index message %s: %w", rec.ID, err)
		}
	}
	return nil
}

// persistedOffset reads the replay offset outside any transaction.
func (s *SQLiteStorage) persistedOffset(ctx context.Context) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaOffsetKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read journal offset: %w", err)
	}
	return parseOffset(value)
}

// getOffset reads the replay offset on conn, inside the caller's
// transaction.
func getOffset(ctx context.Context, conn *sql.Conn) (int64, error) {
	var value string
	err := conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaOffsetKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read journal offset: %w", err)
	}
	return parseOffset(value)
}

// setOffset persists the replay offset on conn, inside the caller's
// transaction.
func setOffset(ctx context.Context, conn *sql.Conn, offset int64) error {
	_, err := conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)
	`, metaOffsetKey, strconv.FormatInt(offset, 10))
	if err != nil {
		return fmt.Errorf("failed to persist journal offset: %w", err)
	}
	return nil
}

func parseOffset(value string) (int64, error) {
	offset, err := strconv.ParseInt(value, 10, 64)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("corrupt journal offset %q", value)
	}
	return offset, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package sqlite

import (
	"database/sql"
	"fmt"
)

const schema = `
-- Topics table
CREATE TABLE IF NOT EXISTS topics (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

-- Messages table. Sender and git columns are added by the additive
-- migration so stores written before those columns existed open clean.
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    topic_id TEXT NOT NULL,
    parent_id TEXT,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE,
    FOREIGN KEY (parent_id) REFERENCES messages(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_topic_created ON messages(topic_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_id);

-- Key-value metadata (replay offset and friends)
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Content-addressed blobs. Index-only: blob state is not reflected in
-- the journal.
CREATE TABLE IF NOT EXISTS blobs (
    id TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    size INTEGER NOT NULL,
    mime_type TEXT,
    created_at INTEGER NOT NULL
);

-- Attachment join records
CREATE TABLE IF NOT EXISTS attachments (
    message_id TEXT NOT NULL,
    blob_id TEXT NOT NULL,
    name TEXT,
    PRIMARY KEY (message_id, blob_id),
    FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
    FOREIGN KEY (blob_id) REFERENCES blobs(id) ON DELETE CASCADE
);

-- Full-text index over message bodies, external content rooted at the
-- messages table rowid.
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    body,
    content='messages',
    content_rowid='rowid'
);
`

// ensureSchema provisions all tables, indexes and the full-text
// virtual table. Every statement is IF NOT EXISTS so reopening an
// existing store is a no-op.
func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

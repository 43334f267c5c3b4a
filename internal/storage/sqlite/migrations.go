// Package sqlite - additive schema migrations
package sqlite

import (
	"database/sql"
	"fmt"
)

// messageColumns are the nullable columns added to messages after the
// initial schema shipped. Column removal and type change are explicit
// non-goals: migration only ever widens the table.
var messageColumns = []struct {
	name string
	ddl  string
}{
	{"sender_id", "ALTER TABLE messages ADD COLUMN sender_id TEXT"},
	{"sender_name", "ALTER TABLE messages ADD COLUMN sender_name TEXT"},
	{"sender_model", "ALTER TABLE messages ADD COLUMN sender_model TEXT"},
	{"sender_role", "ALTER TABLE messages ADD COLUMN sender_role TEXT"},
	{"git_oid", "ALTER TABLE messages ADD COLUMN git_oid TEXT"},
	{"git_head", "ALTER TABLE messages ADD COLUMN git_head TEXT"},
	{"git_dirty", "ALTER TABLE messages ADD COLUMN git_dirty INTEGER"},
	{"git_prefix", "ALTER TABLE messages ADD COLUMN git_prefix TEXT"},
}

// runMigrations inspects the current column set of messages and adds
// any missing sender/git columns, then ensures the sender index
// exists. Runs on every open; all steps are idempotent.
func runMigrations(db *sql.DB) error {
	for _, col := range messageColumns {
		var name string
		err := db.QueryRow(`
			SELECT name FROM pragma_table_info('messages')
			WHERE name = ?
		`, col.name).Scan(&name)

		if err == sql.ErrNoRows {
			if _, err := db.Exec(col.ddl); err != nil {
				return fmt.Errorf("failed to add %s column: %w", col.name, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check %s column: %w", col.name, err)
		}
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`); err != nil {
		return fmt.Errorf("failed to create sender index: %w", err)
	}
	return nil
}

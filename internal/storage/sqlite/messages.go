package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/femtomc/jwz/internal/journal"
	"github.com/femtomc/jwz/internal/types"
)

// messageSelect is the column list shared by every message query. The
// reply count is derived per row from the parent index; it is never
// stored.
const messageSelect = `
	SELECT m.id, m.topic_id, m.parent_id, m.body, m.created_at,
	       m.sender_id, m.sender_name, m.sender_model, m.sender_role,
	       m.git_oid, m.git_head, m.git_dirty, m.git_prefix,
	       (SELECT COUNT(*) FROM messages r WHERE r.parent_id = m.id) AS reply_count
	FROM messages m
`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessage copies one message row out of the engine's buffers into
// an independently owned record.
func scanMessage(row rowScanner) (*types.Message, error) {
	var m types.Message
	var parentID, senderID, senderName, senderModel, senderRole sql.NullString
	var gitOID, gitHead, gitPrefix sql.NullString
	var gitDirty sql.NullInt64

	err := row.Scan(
		&m.ID, &m.TopicID, &parentID, &m.Body, &m.CreatedAt,
		&senderID, &senderName, &senderModel, &senderRole,
		&gitOID, &gitHead, &gitDirty, &gitPrefix,
		&m.ReplyCount,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		p := parentID.String
		m.ParentID = &p
	}
	if senderID.Valid {
		m.Sender = &types.Sender{
			ID:    senderID.String,
			Name:  senderName.String,
			Model: senderModel.String,
			Role:  senderRole.String,
		}
	}
	if gitOID.Valid {
		m.Git = &types.GitContext{
			OID:    gitOID.String,
			Head:   gitHead.String,
			Dirty:  gitDirty.Int64 != 0,
			Prefix: gitPrefix.String,
		}
	}
	return &m, nil
}

// CreateMessage posts a message to a topic and returns its identifier.
// The body is trimmed; an empty trimmed body is rejected. The topic is
// resolved by name, and a supplied parent must already exist in that
// topic. Like CreateTopic, the row, the full-text row, the journal
// record and the offset commit atomically.
func (s *SQLiteStorage) CreateMessage(ctx context.Context, msg *types.NewMessage) (string, error) {
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return "", types.ErrEmptyMessageBody
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := s.beginImmediate(ctx, conn); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollback(conn)
		}
	}()

	if err := s.journal.Lock(); err != nil {
		return "", err
	}
	locked := true
	defer func() {
		if locked {
			_ = s.journal.Unlock()
		}
	}()

	// Fold in records appended by other processes so topic and parent
	// lookups see the latest log state.
	if err := s.replayLocked(ctx, conn); err != nil {
		return "", err
	}

	topicID, err := topicIDByName(ctx, conn, strings.TrimSpace(msg.Topic))
	if err != nil {
		return "", err
	}

	var parentID *string
	if msg.ParentID != "" {
		var found string
		err := conn.QueryRowContext(ctx, `
			SELECT id FROM messages WHERE id = ? AND topic_id = ?
		`, msg.ParentID, topicID).Scan(&found)
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("parent %s: %w", msg.ParentID, types.ErrParentNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to check parent: %w", err)
		}
		parentID = &found
	}

	id, err := s.ids.NewID()
	if err != nil {
		return "", err
	}
	m := &types.Message{
		ID:        id,
		TopicID:   topicID,
		ParentID:  parentID,
		Body:      body,
		CreatedAt: s.nowMillis(),
		Sender:    msg.Sender,
		Git:       msg.Git,
	}
	line, err := journal.EncodeMessage(m)
	if err != nil {
		return "", err
	}

	var senderID, senderName, senderModel, senderRole any
	if m.Sender != nil {
		senderID, senderName = m.Sender.ID, m.Sender.Name
		if m.Sender.Model != "" {
			senderModel = m.Sender.Model
		}
		if m.Sender.Role != "" {
			senderRole = m.Sender.Role
		}
	}
	var gitOID, gitHead, gitDirty, gitPrefix any
	if m.Git != nil {
		gitOID, gitHead = m.Git.OID, m.Git.Head
		gitDirty = boolToInt(m.Git.Dirty)
		if m.Git.Prefix != "" {
			gitPrefix = m.Git.Prefix
		}
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO messages (
			id, topic_id, parent_id, body, created_at,
			sender_id, sender_name, sender_model, sender_role,
			git_oid, git_head, git_dirty, git_prefix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.TopicID, m.ParentID, m.Body, m.CreatedAt,
		senderID, senderName, senderModel, senderRole,
		gitOID, gitHead, gitDirty, gitPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO messages_fts (rowid, body) VALUES (last_insert_rowid(), ?)
	`, m.Body)
	if err != nil {
		return "", fmt.Errorf("failed to index message: %w", err)
	}

	offset, err := getOffset(ctx, conn)
	if err != nil {
		return "", err
	}
	n, err := s.journal.AppendLocked(line)
	if err != nil {
		return "", err
	}
	if err := setOffset(ctx, conn, offset+int64(n)); err != nil {
		return "", err
	}

	_ = s.journal.Unlock()
	locked = false

	if err := s.commit(ctx, conn); err != nil {
		return "", fmt.Errorf("failed to commit message: %w", err)
	}
	committed = true
	return m.ID, nil
}

// GetMessage fetches a message by full identifier or unique prefix.
func (s *SQLiteStorage) GetMessage(ctx context.Context, idOrPrefix string) (*types.Message, error) {
	id, err := s.ResolveMessageID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	m, err := scanMessage(s.db.QueryRowContext(ctx, messageSelect+`WHERE m.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %s: %w", id, types.ErrMessageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListMessages returns the root messages of a topic, newest first, up
// to limit. A non-positive limit returns all roots.
func (s *SQLiteStorage) ListMessages(ctx context.Context, topicName string, limit int) ([]*types.Message, error) {
	topic, err := s.GetTopic(ctx, topicName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, messageSelect+`
		WHERE m.topic_id = ? AND m.parent_id IS NULL
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, topic.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return collectMessages(rows)
}

// Thread returns the message named by idOrPrefix followed by all its
// transitive replies, ordered by creation time. Depth is not stored;
// callers derive it from the parent chain.
func (s *SQLiteStorage) Thread(ctx context.Context, idOrPrefix string) ([]*types.Message, error) {
	id, err := s.ResolveMessageID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE thread(id) AS (
			SELECT id FROM messages WHERE id = ?
			UNION ALL
			SELECT m.id FROM messages m JOIN thread t ON m.parent_id = t.id
		)
	`+messageSelect+`
		WHERE m.id IN (SELECT id FROM thread)
		ORDER BY m.created_at, m.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %s: %w", id, types.ErrMessageNotFound)
	}
	return msgs, nil
}

// Replies returns the immediate children of a message, oldest first.
func (s *SQLiteStorage) Replies(ctx context.Context, idOrPrefix string) ([]*types.Message, error) {
	id, err := s.ResolveMessageID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, messageSelect+`
		WHERE m.parent_id = ?
		ORDER BY m.created_at, m.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return collectMessages(rows)
}

// collectMessages drains rows into owned records and closes them.
func collectMessages(rows *sql.Rows) ([]*types.Message, error) {
	defer func() { _ = rows.Close() }()

	var msgs []*types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}

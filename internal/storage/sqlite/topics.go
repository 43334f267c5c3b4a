package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/femtomc/jwz/internal/journal"
	"github.com/femtomc/jwz/internal/types"
)

// CreateTopic creates a topic and returns its identifier. The name and
// description are trimmed of ASCII whitespace; an empty trimmed name is
// rejected, a duplicate name fails with types.ErrTopicExists.
//
// The row, the journal record and the offset all land inside one
// IMMEDIATE transaction and one locked append: nothing commits to the
// index that is not already durable in the log.
func (s *SQLiteStorage) CreateTopic(ctx context.Context, name, description string) (string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", types.ErrEmptyTopicName
	}

	id, err := s.ids.NewID()
	if err != nil {
		return "", err
	}
	topic := &types.Topic{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   s.nowMillis(),
	}
	line, err := journal.EncodeTopic(topic)
	if err != nil {
		return "", err
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

	// Another process may have appended since our last replay; fold its
	// records in before writing so the offset stays tight.
	if err := s.replayLocked(ctx, conn); err != nil {
		return "", err
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO topics (id, name, description, created_at)
		VALUES (?, ?, ?, ?)
	`, topic.ID, topic.Name, topic.Description, topic.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", fmt.Errorf("topic %q: %w", name, types.ErrTopicExists)
		}
		return "", fmt.Errorf("failed to insert topic: %w", err)
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
		return "", fmt.Errorf("failed to commit topic: %w", err)
	}
	committed = true
	return topic.ID, nil
}

// GetTopic looks a topic up by name. The argument is trimmed the same
// way CreateTopic trims before insert, so whitespace-padded lookups
// find their topic.
func (s *SQLiteStorage) GetTopic(ctx context.Context, name string) (*types.Topic, error) {
	name = strings.TrimSpace(name)

	var t types.Topic
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM topics WHERE name = ?
	`, name).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("topic %q: %w", name, types.ErrTopicNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &t, nil
}

// GetTopicByID looks a topic up by identifier.
func (s *SQLiteStorage) GetTopicByID(ctx context.Context, id string) (*types.Topic, error) {
	var t types.Topic
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM topics WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("topic %s: %w", id, types.ErrTopicNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &t, nil
}

// ListTopics returns all topics in creation order.
func (s *SQLiteStorage) ListTopics(ctx context.Context) ([]*types.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM topics
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var topics []*types.Topic
	for rows.Next() {
		var t types.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}
	return topics, nil
}

// topicIDByName resolves a topic name to its identifier on conn,
// inside the caller's transaction.
func topicIDByName(ctx context.Context, conn *sql.Conn, name string) (string, error) {
	var id string
	err := conn.QueryRowContext(ctx, `SELECT id FROM topics WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("topic %q: %w", name, types.ErrTopicNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve topic: %w", err)
	}
	return id, nil
}

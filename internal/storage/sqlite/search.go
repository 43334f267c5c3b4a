package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/femtomc/jwz/internal/types"
)

// escapeQuery neutralizes the fts5 operator syntax by wrapping the
// user's query in double quotes, doubling any embedded quote. The
// whole input then matches as a single phrase: parentheses, stars,
// colons and NEAR/AND/OR/NOT lose their operator meaning.
func escapeQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// SearchMessages runs a full-text search over message bodies. Results
// order by relevance (bm25, best match first) with creation time
// descending as the tiebreak. An empty topicName searches every topic.
// A non-positive limit returns all matches.
func (s *SQLiteStorage) SearchMessages(ctx context.Context, query, topicName string, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	match := escapeQuery(query)

	q := `
		SELECT m.id, m.topic_id, m.parent_id, m.body, m.created_at,
		       m.sender_id, m.sender_name, m.sender_model, m.sender_role,
		       m.git_oid, m.git_head, m.git_dirty, m.git_prefix,
		       (SELECT COUNT(*) FROM messages r WHERE r.parent_id = m.id) AS reply_count
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		WHERE messages_fts MATCH ?`
	args := []any{match}

	if topicName != "" {
		topic, err := s.GetTopic(ctx, topicName)
		if err != nil {
			return nil, err
		}
		q += ` AND m.topic_id = ?`
		args = append(args, topic.ID)
	}

	q += `
		ORDER BY bm25(messages_fts), m.created_at DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return collectMessages(rows)
}

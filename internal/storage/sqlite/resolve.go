package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/femtomc/jwz/internal/idgen"
	"github.com/femtomc/jwz/internal/types"
)

// ResolveMessageID maps a full identifier or unique prefix to the full
// identifier it names.
//
// An exact match wins outright: a full identifier can never be turned
// ambiguous by another identifier it happens to prefix. Otherwise up to
// two prefix matches are fetched; zero is not found, one resolves, two
// means the caller must supply more characters. Time-ordered
// identifiers keep prefixes stable: an old message only becomes
// ambiguous when the prefix is shorter than the shared time root.
func (s *SQLiteStorage) ResolveMessageID(ctx context.Context, idOrPrefix string) (string, error) {
	if !idgen.ValidPrefix(idOrPrefix) {
		return "", fmt.Errorf("%q: %w", idOrPrefix, types.ErrInvalidMessageID)
	}
	prefix := idgen.Normalize(idOrPrefix)

	var exact string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM messages WHERE id = ?`, prefix).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to resolve message id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM messages WHERE id LIKE ? || '%' LIMIT 2
	`, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve message id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan message id: %w", err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating message ids: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("message %s: %w", idOrPrefix, types.ErrMessageNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("prefix %s: %w", idOrPrefix, types.ErrMessageIDAmbiguous)
	}
}

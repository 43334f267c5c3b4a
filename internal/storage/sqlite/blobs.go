package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/femtomc/jwz/internal/types"
)

// BlobIDPrefix is the algorithm prefix of every blob identity. It is
// part of the identity itself: if the algorithm ever changes, old
// identifiers stay valid under the old prefix forever.
const BlobIDPrefix = "sha256:"

// BlobID computes the content address of data.
func BlobID(data []byte) string {
	sum := sha256.Sum256(data)
	return BlobIDPrefix + hex.EncodeToString(sum[:])
}

// PutBlob stores a content-addressed blob and returns its identity.
// Storing the same bytes twice is a no-op that returns the existing
// identity; the first writer's mime label wins.
//
// Blobs live in the index only — they are not reflected in the
// journal, so a log-only rebuild does not restore them.
func (s *SQLiteStorage) PutBlob(ctx context.Context, data []byte, mimeType string) (string, error) {
	id := BlobID(data)

	var exists string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM blobs WHERE id = ?`, id).Scan(&exists)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to check blob: %w", err)
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

	var mime any
	if mimeType != "" {
		mime = mimeType
	}
	_, err = conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO blobs (id, content, size, mime_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, data, int64(len(data)), mime, s.nowMillis())
	if err != nil {
		return "", fmt.Errorf("failed to insert blob: %w", err)
	}

	if err := s.commit(ctx, conn); err != nil {
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	committed = true
	return id, nil
}

// GetBlob returns the bytes stored under id.
func (s *SQLiteStorage) GetBlob(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE id = ?`, id).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("blob %s: %w", id, types.ErrBlobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return content, nil
}

// GetBlobInfo returns blob metadata without the content bytes.
func (s *SQLiteStorage) GetBlobInfo(ctx context.Context, id string) (*types.Blob, error) {
	var b types.Blob
	var mime sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, size, mime_type, created_at FROM blobs WHERE id = ?
	`, id).Scan(&b.ID, &b.Size, &mime, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("blob %s: %w", id, types.ErrBlobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob info: %w", err)
	}
	b.MimeType = mime.String
	return &b, nil
}

// AttachBlob links a blob to a message under an optional display name.
// Re-attaching the same pair replaces the name.
func (s *SQLiteStorage) AttachBlob(ctx context.Context, messageID, blobID, name string) error {
	id, err := s.ResolveMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.GetBlobInfo(ctx, blobID); err != nil {
		return err
	}

	var attachName any
	if name != "" {
		attachName = name
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO attachments (message_id, blob_id, name)
		VALUES (?, ?, ?)
	`, id, blobID, attachName)
	if err != nil {
		return fmt.Errorf("failed to attach blob: %w", err)
	}
	return nil
}

// ListAttachments returns all attachment records for a message.
func (s *SQLiteStorage) ListAttachments(ctx context.Context, messageID string) ([]*types.Attachment, error) {
	id, err := s.ResolveMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, blob_id, name FROM attachments
		WHERE message_id = ?
		ORDER BY blob_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attachments []*types.Attachment
	for rows.Next() {
		var a types.Attachment
		var name sql.NullString
		if err := rows.Scan(&a.MessageID, &a.BlobID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		a.Name = name.String
		attachments = append(attachments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}
	return attachments, nil
}

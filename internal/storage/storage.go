// Package storage defines the interface for message store backends.
package storage

import (
	"context"

	"github.com/femtomc/jwz/internal/types"
)

// Storage is the repository API over the dual representation: every
// topic and message write lands in both the relational index and the
// append-only log before it is acknowledged, blob and attachment writes
// land in the index only, and every read is served from the index.
//
// All returned records are fully owned copies; callers may retain them
// after the storage is closed.
type Storage interface {
	// Topics
	CreateTopic(ctx context.Context, name, description string) (string, error)
	GetTopic(ctx context.Context, name string) (*types.Topic, error)
	GetTopicByID(ctx context.Context, id string) (*types.Topic, error)
	ListTopics(ctx context.Context) ([]*types.Topic, error)

	// Messages
	CreateMessage(ctx context.Context, msg *types.NewMessage) (string, error)
	GetMessage(ctx context.Context, idOrPrefix string) (*types.Message, error)
	ListMessages(ctx context.Context, topicName string, limit int) ([]*types.Message, error)
	Thread(ctx context.Context, idOrPrefix string) ([]*types.Message, error)
	Replies(ctx context.Context, idOrPrefix string) ([]*types.Message, error)
	SearchMessages(ctx context.Context, query, topicName string, limit int) ([]*types.Message, error)

	// ResolveMessageID maps a full identifier or unique prefix to the
	// full identifier it names.
	ResolveMessageID(ctx context.Context, idOrPrefix string) (string, error)

	// Blobs
	PutBlob(ctx context.Context, data []byte, mimeType string) (string, error)
	GetBlob(ctx context.Context, id string) ([]byte, error)
	GetBlobInfo(ctx context.Context, id string) (*types.Blob, error)
	AttachBlob(ctx context.Context, messageID, blobID, name string) error
	ListAttachments(ctx context.Context, messageID string) ([]*types.Attachment, error)

	Close() error
}

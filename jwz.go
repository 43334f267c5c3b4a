// Package jwz provides a minimal public API for embedding the message
// store in other Go programs.
//
// Most integrations should use the jwz CLI; this package exports only
// the types and entry points needed to drive the store
// programmatically: initialize or discover a store directory, open it,
// and use the Storage interface.
package jwz

import (
	"context"

	"github.com/femtomc/jwz/internal/storage"
	"github.com/femtomc/jwz/internal/store"
	"github.com/femtomc/jwz/internal/types"
)

// Core record types.
type (
	Topic      = types.Topic
	Message    = types.Message
	NewMessage = types.NewMessage
	Sender     = types.Sender
	GitContext = types.GitContext
	Blob       = types.Blob
	Attachment = types.Attachment
)

// Storage is the repository API over an open store.
type Storage = storage.Storage

// Store is an open store handle. Close it when done; it owns the index
// connection and the lock file handle.
type Store = store.Store

// Error kinds callers can branch on with errors.Is.
var (
	ErrStoreNotFound      = types.ErrStoreNotFound
	ErrStoreExists        = types.ErrStoreExists
	ErrTopicNotFound      = types.ErrTopicNotFound
	ErrTopicExists        = types.ErrTopicExists
	ErrMessageNotFound    = types.ErrMessageNotFound
	ErrMessageIDAmbiguous = types.ErrMessageIDAmbiguous
	ErrInvalidMessageID   = types.ErrInvalidMessageID
	ErrParentNotFound     = types.ErrParentNotFound
	ErrEmptyTopicName     = types.ErrEmptyTopicName
	ErrEmptyMessageBody   = types.ErrEmptyMessageBody
	ErrBlobNotFound       = types.ErrBlobNotFound
	ErrDatabaseBusy       = types.ErrDatabaseBusy
)

// Init creates a new .jwz store under parent and returns its path.
func Init(parent string) (string, error) {
	return store.Init(parent)
}

// Discover walks upward from dir to find a store root.
func Discover(dir string) (string, error) {
	return store.Discover(dir)
}

// Open opens the store rooted at root, replaying any log suffix the
// index has not yet observed.
func Open(ctx context.Context, root string) (*Store, error) {
	return store.Open(ctx, root)
}

package types

import "errors"

// Sentinel errors for conditions callers are expected to branch on.
// Layers wrap these with fmt.Errorf("...: %w", err) context; classify
// with errors.Is.
var (
	// ErrStoreNotFound indicates no store directory was found walking up
	// from the working directory.
	ErrStoreNotFound = errors.New("store not found")

	// ErrStoreExists indicates init was asked to create a store where one
	// already exists.
	ErrStoreExists = errors.New("store already exists")

	// ErrTopicNotFound indicates a lookup by topic name matched nothing.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrTopicExists indicates a topic with that name already exists.
	ErrTopicExists = errors.New("topic already exists")

	// ErrMessageNotFound indicates a lookup by id or prefix matched nothing.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageIDAmbiguous indicates a prefix matched two or more messages.
	ErrMessageIDAmbiguous = errors.New("message id is ambiguous")

	// ErrInvalidMessageID indicates the supplied id is not a valid
	// identifier or identifier prefix.
	ErrInvalidMessageID = errors.New("invalid message id")

	// ErrParentNotFound indicates the supplied parent message does not
	// exist in the topic the new message is posted to.
	ErrParentNotFound = errors.New("parent message not found")

	// ErrEmptyTopicName indicates a topic name was empty after trimming.
	ErrEmptyTopicName = errors.New("topic name is empty")

	// ErrEmptyMessageBody indicates a message body was empty after trimming.
	ErrEmptyMessageBody = errors.New("message body is empty")

	// ErrBlobNotFound indicates a blob lookup by id matched nothing.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrDatabaseBusy indicates the index stayed locked past the retry
	// budget. Transient: the caller may retry the whole operation.
	ErrDatabaseBusy = errors.New("database busy")
)

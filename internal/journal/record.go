// Package journal implements the append-only JSONL log that is the
// durable source of truth for topics and messages.
//
// Each record is one minified JSON object terminated by a single
// newline. The log is never rewritten in place: appends happen under an
// exclusive advisory lock on the sibling lock file, and replay reads
// hold a shared lock so a concurrent writer cannot land a partial
// record mid-read.
package journal

import (
	"encoding/json"
	"fmt"

	"github.com/femtomc/jwz/internal/types"
)

// Record types as they appear in the "type" field of a log line.
const (
	TypeTopic   = "topic"
	TypeMessage = "message"
)

// Record is the permissive decode shape for one log line. Unknown
// fields are ignored; fields not belonging to the record's type are
// left zero.
type Record struct {
	Type        string            `json:"type"`
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	TopicID     string            `json:"topic_id,omitempty"`
	ParentID    *string           `json:"parent_id,omitempty"`
	Body        string            `json:"body,omitempty"`
	CreatedAt   int64             `json:"created_at"`
	Sender      *types.Sender     `json:"sender,omitempty"`
	Git         *types.GitContext `json:"git,omitempty"`
}

// topicLine is the exact wire shape of a topic record.
type topicLine struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
}

// messageLine is the exact wire shape of a message record. ParentID,
// Sender and Git serialize as explicit null when absent.
type messageLine struct {
	Type      string            `json:"type"`
	ID        string            `json:"id"`
	TopicID   string            `json:"topic_id"`
	ParentID  *string           `json:"parent_id"`
	Body      string            `json:"body"`
	CreatedAt int64             `json:"created_at"`
	Sender    *types.Sender     `json:"sender"`
	Git       *types.GitContext `json:"git"`
}

// EncodeTopic renders a topic as one log line, newline included.
func EncodeTopic(t *types.Topic) ([]byte, error) {
	data, err := json.Marshal(topicLine{
		Type:        TypeTopic,
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode topic record: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeMessage renders a message as one log line, newline included.
func EncodeMessage(m *types.Message) ([]byte, error) {
	data, err := json.Marshal(messageLine{
		Type:      TypeMessage,
		ID:        m.ID,
		TopicID:   m.TopicID,
		ParentID:  m.ParentID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		Sender:    m.Sender,
		Git:       m.Git,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message record: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeLine parses one log line. Returns nil (and no error) for lines
// that are not valid JSON objects or carry an unknown type: replay
// tolerates torn or foreign lines by skipping them.
func DecodeLine(line []byte) *Record {
	if len(line) == 0 {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil
	}
	switch rec.Type {
	case TypeTopic, TypeMessage:
		return &rec
	default:
		return nil
	}
}

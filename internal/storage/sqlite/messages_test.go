package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/femtomc/jwz/internal/types"
)

func mustCreateTopic(t *testing.T, store *SQLiteStorage, name string) {
	t.Helper()
	if _, err := store.CreateTopic(context.Background(), name, ""); err != nil {
		t.Fatalf("failed to create topic %s: %v", name, err)
	}
}

func mustPost(t *testing.T, store *SQLiteStorage, topic, parent, body string) string {
	t.Helper()
	id, err := store.CreateMessage(context.Background(), &types.NewMessage{
		Topic:    topic,
		ParentID: parent,
		Body:     body,
	})
	if err != nil {
		t.Fatalf("failed to post %q: %v", body, err)
	}
	return id
}

func TestCreateAndRead(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	mustPost(t, store, "tasks", "", "hello")

	msgs, err := store.ListMessages(ctx, "tasks", 10)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Body != "hello" {
		t.Errorf("body = %q, want hello", msgs[0].Body)
	}
	if msgs[0].ReplyCount != 0 {
		t.Errorf("reply_count = %d, want 0", msgs[0].ReplyCount)
	}
	if msgs[0].ParentID != nil {
		t.Errorf("root message has a parent: %v", *msgs[0].ParentID)
	}
}

func TestThreading(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	r := mustPost(t, store, "tasks", "", "root")
	a := mustPost(t, store, "tasks", r, "reply a")
	b := mustPost(t, store, "tasks", a, "reply b")

	thread, err := store.Thread(ctx, r)
	if err != nil {
		t.Fatalf("failed to load thread: %v", err)
	}
	if len(thread) != 3 {
		t.Fatalf("expected 3 messages in thread, got %d", len(thread))
	}
	for i, want := range []string{r, a, b} {
		if thread[i].ID != want {
			t.Errorf("thread[%d] = %s, want %s", i, thread[i].ID, want)
		}
	}

	replies, err := store.Replies(ctx, r)
	if err != nil {
		t.Fatalf("failed to list replies: %v", err)
	}
	if len(replies) != 1 || replies[0].ID != a {
		t.Errorf("replies(root) should be exactly [a], got %d", len(replies))
	}

	root, err := store.GetMessage(ctx, r)
	if err != nil {
		t.Fatalf("failed to fetch root: %v", err)
	}
	if root.ReplyCount != 1 {
		t.Errorf("root reply_count = %d, want 1", root.ReplyCount)
	}

	// Only roots show up in the topic listing.
	msgs, err := store.ListMessages(ctx, "tasks", 10)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != r {
		t.Errorf("listing should contain the root only")
	}
}

func TestListMessagesNewestFirstWithLimit(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	mustPost(t, store, "tasks", "", "first")
	mustPost(t, store, "tasks", "", "second")
	third := mustPost(t, store, "tasks", "", "third")

	msgs, err := store.ListMessages(ctx, "tasks", 2)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages under limit, got %d", len(msgs))
	}
	if msgs[0].ID != third {
		t.Errorf("newest message should come first")
	}
	if msgs[0].CreatedAt < msgs[1].CreatedAt {
		t.Errorf("messages not in descending time order")
	}
}

func TestCreateMessageEmptyBody(t *testing.T) {
	store, _ := setupTestStorage(t)
	mustCreateTopic(t, store, "tasks")

	_, err := store.CreateMessage(context.Background(), &types.NewMessage{Topic: "tasks", Body: " \t\n "})
	if !errors.Is(err, types.ErrEmptyMessageBody) {
		t.Errorf("expected ErrEmptyMessageBody, got %v", err)
	}
}

func TestCreateMessageTopicNotFound(t *testing.T) {
	store, _ := setupTestStorage(t)

	_, err := store.CreateMessage(context.Background(), &types.NewMessage{Topic: "nope", Body: "hi"})
	if !errors.Is(err, types.ErrTopicNotFound) {
		t.Errorf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestCreateMessageParentNotFound(t *testing.T) {
	store, _ := setupTestStorage(t)
	mustCreateTopic(t, store, "tasks")

	_, err := store.CreateMessage(context.Background(), &types.NewMessage{
		Topic:    "tasks",
		ParentID: "01HZXK0000000000000000XX99",
		Body:     "orphan",
	})
	if !errors.Is(err, types.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

func TestCreateMessageParentInOtherTopic(t *testing.T) {
	store, _ := setupTestStorage(t)

	mustCreateTopic(t, store, "tasks")
	mustCreateTopic(t, store, "notes")
	parent := mustPost(t, store, "tasks", "", "root in tasks")

	// A parent in a different topic is no parent at all.
	_, err := store.CreateMessage(context.Background(), &types.NewMessage{
		Topic:    "notes",
		ParentID: parent,
		Body:     "cross-topic reply",
	})
	if !errors.Is(err, types.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound for cross-topic parent, got %v", err)
	}
}

func TestSenderAndGitRoundTrip(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	id, err := store.CreateMessage(ctx, &types.NewMessage{
		Topic: "tasks",
		Body:  "with context",
		Sender: &types.Sender{
			ID:    "agent@host",
			Name:  "swift-otter",
			Model: "opus",
			Role:  "reviewer",
		},
		Git: &types.GitContext{
			OID:    "0123456789abcdef0123456789abcdef01234567",
			Head:   "main",
			Dirty:  true,
			Prefix: "pkg/",
		},
	})
	if err != nil {
		t.Fatalf("failed to post: %v", err)
	}

	m, err := store.GetMessage(ctx, id)
	if err != nil {
		t.Fatalf("failed to fetch: %v", err)
	}
	if m.Sender == nil || m.Sender.ID != "agent@host" || m.Sender.Name != "swift-otter" ||
		m.Sender.Model != "opus" || m.Sender.Role != "reviewer" {
		t.Errorf("sender did not round-trip: %+v", m.Sender)
	}
	if m.Git == nil || m.Git.Head != "main" || !m.Git.Dirty || m.Git.Prefix != "pkg/" {
		t.Errorf("git context did not round-trip: %+v", m.Git)
	}
}

func TestForeignKeysHold(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	mustCreateTopic(t, store, "tasks")
	r := mustPost(t, store, "tasks", "", "root")
	mustPost(t, store, "tasks", r, "reply")

	db := store.UnderlyingDB()
	var orphanTopics, orphanParents int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE NOT EXISTS (SELECT 1 FROM topics t WHERE t.id = m.topic_id)
	`).Scan(&orphanTopics)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE m.parent_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM messages p WHERE p.id = m.parent_id)
	`).Scan(&orphanParents)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if orphanTopics != 0 || orphanParents != 0 {
		t.Errorf("foreign keys violated: %d orphan topics, %d orphan parents", orphanTopics, orphanParents)
	}
}

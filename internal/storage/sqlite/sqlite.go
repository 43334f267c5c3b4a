package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/femtomc/jwz/internal/idgen"
	"github.com/femtomc/jwz/internal/journal"
)

// SQLiteStorage is the repository over the SQLite index and the
// append-only journal. It owns the database handle; the journal's lock
// file handle is owned by the enclosing store.
type SQLiteStorage struct {
	db      *sql.DB
	journal *journal.Journal
	ids     *idgen.Generator
	retry   RetryPolicy
	now     func() time.Time
}

// Option adjusts storage construction. Tests substitute deterministic
// clocks and retry policies.
type Option func(*SQLiteStorage)

// WithClock installs the time source used for created_at stamps and
// identifier timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) {
		s.now = now
		s.ids = idgen.NewWithClock(now)
	}
}

// WithRetryPolicy replaces the boundary-statement busy retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *SQLiteStorage) {
		s.retry = p
	}
}

// New opens (creating if missing) the index at dbPath, ensures the
// schema, runs additive migrations, and replays any journal suffix the
// index has not yet observed. The journal j must point at the store's
// messages.jsonl and lock file.
func New(ctx context.Context, dbPath string, j *journal.Journal, opts ...Option) (*SQLiteStorage, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &SQLiteStorage{
		db:      db,
		journal: j,
		ids:     idgen.New(),
		retry:   DefaultRetryPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.CatchUp(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// UnderlyingDB exposes the index handle for diagnostics and tests.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// nowMillis is the millisecond timestamp stamped on new records.
func (s *SQLiteStorage) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Package sqlite implements the message store repository over an
// embedded SQLite index plus the append-only journal.
//
// The index is a rebuildable cache: deleting messages.db and reopening
// the store reproduces it from the journal. The journal is the source
// of truth; nothing commits to the index that is not already durable in
// the log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/femtomc/jwz/internal/types"
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// busyTimeoutMillis is the engine-side wait before a statement reports
// SQLITE_BUSY. The boundary-statement retry loop sits on top of it.
const busyTimeoutMillis = 300_000

// connString builds the connection string for the index file. Pragmas
// ride in the URI so every pooled connection carries them: WAL
// journaling, NORMAL synchronous, busy timeout, in-memory temp store,
// and enforced foreign keys. These are contracts of the store, not
// tuning knobs.
func connString(path string) string {
	return fmt.Sprintf("file:%s"+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=synchronous(NORMAL)"+
		"&_pragma=busy_timeout(%d)"+
		"&_pragma=temp_store(memory)"+
		"&_pragma=foreign_keys(ON)",
		path, busyTimeoutMillis)
}

// openDB opens (creating if missing) the index database.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", connString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// IsBusy reports whether err is the engine's busy or locked condition,
// including extended codes whose low byte matches. Everything else the
// engine reports is a plain engine error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.BUSY, sqlite3.LOCKED:
			return true
		}
		return false
	}
	// Driver versions that flatten errors to strings.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// isUniqueConstraintError checks if error is a UNIQUE constraint
// violation, used to map duplicate topic names to types.ErrTopicExists.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.CONSTRAINT {
		return strings.Contains(err.Error(), "UNIQUE")
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "constraint failed: UNIQUE")
}

// RetryPolicy bounds the busy retry loop around transaction boundary
// statements (BEGIN IMMEDIATE, COMMIT). Non-boundary statements inside
// a transaction surface busy immediately; the whole transaction is the
// retry unit at that point.
type RetryPolicy struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Sleep is the backoff sleeper; nil means time.Sleep. Tests install
	// a recorder to keep the loop deterministic.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy retries boundary statements up to 50 times with a
// uniformly random backoff in [50ms, 500ms].
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   50,
		MinBackoff: 50 * time.Millisecond,
		MaxBackoff: 500 * time.Millisecond,
	}
}

func (p RetryPolicy) backoff() time.Duration {
	if p.MaxBackoff <= p.MinBackoff {
		return p.MinBackoff
	}
	return p.MinBackoff + time.Duration(rand.Int63n(int64(p.MaxBackoff-p.MinBackoff)))
}

// run invokes fn until it succeeds, fails with a non-busy error, or the
// attempt budget is spent. After the budget the call fails with
// types.ErrDatabaseBusy.
func (p RetryPolicy) run(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsBusy(err) {
			return err
		}
		sleep := p.Sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sleep(p.backoff())
	}
	return fmt.Errorf("boundary statement still busy after %d attempts: %w", attempts, types.ErrDatabaseBusy)
}

// beginImmediate starts an IMMEDIATE transaction on conn with busy
// retry. IMMEDIATE acquires the write lock up front so concurrent
// writers serialize at the boundary instead of deadlocking mid-
// transaction. Raw SQL is used because database/sql has no transaction
// mode parameter and the pool would otherwise split statements across
// connections.
func (s *SQLiteStorage) beginImmediate(ctx context.Context, conn *sql.Conn) error {
	return s.retry.run(ctx, func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		return err
	})
}

// commit commits the transaction on conn with busy retry.
func (s *SQLiteStorage) commit(ctx context.Context, conn *sql.Conn) error {
	return s.retry.run(ctx, func() error {
		_, err := conn.ExecContext(ctx, "COMMIT")
		return err
	})
}

// rollback abandons the transaction on conn. Uses a background context
// so cleanup happens even when the caller's context is already done.
func rollback(conn *sql.Conn) {
	_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
}

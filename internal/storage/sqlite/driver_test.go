package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/femtomc/jwz/internal/types"
)

func TestIsBusyClassification(t *testing.T) {
	if IsBusy(nil) {
		t.Error("nil is not busy")
	}
	if !IsBusy(errors.New("database is locked")) {
		t.Error("locked message should classify as busy")
	}
	if !IsBusy(fmt.Errorf("exec: %w", errors.New("database table is locked"))) {
		t.Error("wrapped locked message should classify as busy")
	}
	if IsBusy(errors.New("no such table: nope")) {
		t.Error("plain engine errors are not busy")
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	if !isUniqueConstraintError(errors.New("UNIQUE constraint failed: topics.name")) {
		t.Error("unique violation not recognized")
	}
	if !isUniqueConstraintError(errors.New("constraint failed: UNIQUE constraint failed: topics.name")) {
		t.Error("alternate driver phrasing not recognized")
	}
	if isUniqueConstraintError(errors.New("FOREIGN KEY constraint failed")) {
		t.Error("foreign key violation misclassified as unique")
	}
	if isUniqueConstraintError(nil) {
		t.Error("nil misclassified")
	}
}

func TestRetryPolicyRetriesBusy(t *testing.T) {
	policy := RetryPolicy{
		Attempts:   5,
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		Sleep:      func(time.Duration) {},
	}

	calls := 0
	err := policy.run(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryPolicyExhaustion(t *testing.T) {
	var slept []time.Duration
	policy := RetryPolicy{
		Attempts:   4,
		MinBackoff: 50 * time.Millisecond,
		MaxBackoff: 500 * time.Millisecond,
		Sleep:      func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	err := policy.run(context.Background(), func() error {
		calls++
		return errors.New("database is locked")
	})
	if !errors.Is(err, types.ErrDatabaseBusy) {
		t.Errorf("expected ErrDatabaseBusy after exhaustion, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
	for _, d := range slept {
		if d < policy.MinBackoff || d > policy.MaxBackoff {
			t.Errorf("backoff %v outside [%v, %v]", d, policy.MinBackoff, policy.MaxBackoff)
		}
	}
}

func TestRetryPolicyDoesNotRetryOtherErrors(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Sleep = func(time.Duration) {}

	calls := 0
	boom := errors.New("no such table: nope")
	err := policy.run(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-busy errors must surface immediately, got %d attempts", calls)
	}
}

func TestDefaultRetryPolicyBounds(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Attempts != 50 {
		t.Errorf("attempts = %d, want 50", p.Attempts)
	}
	if p.MinBackoff != 50*time.Millisecond || p.MaxBackoff != 500*time.Millisecond {
		t.Errorf("backoff bounds = [%v, %v], want [50ms, 500ms]", p.MinBackoff, p.MaxBackoff)
	}
}

func TestMigrationsAddColumnsToOldSchema(t *testing.T) {
	store, _ := setupTestStorage(t)
	db := store.UnderlyingDB()

	// Simulate a pre-sender store: drop one of the migrated columns and
	// re-run migration.
	if _, err := db.Exec(`ALTER TABLE messages DROP COLUMN sender_model`); err != nil {
		t.Fatalf("failed to drop column: %v", err)
	}
	if err := runMigrations(db); err != nil {
		t.Fatalf("failed to re-run migrations: %v", err)
	}

	var name string
	err := db.QueryRow(`SELECT name FROM pragma_table_info('messages') WHERE name = 'sender_model'`).Scan(&name)
	if err != nil {
		t.Fatalf("sender_model column missing after migration: %v", err)
	}
}

package journal

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// Journal owns the log file path and its advisory lock. The lock file
// is a sibling sentinel: holding it exclusively serializes appends
// across processes, holding it shared keeps writers out during a
// replay read.
type Journal struct {
	path string
	lock *flock.Flock
}

// New returns a journal over logPath guarded by the lock file at
// lockPath. Neither file is created until first use; store init lays
// both down with the right modes.
func New(logPath, lockPath string) *Journal {
	return &Journal{
		path: logPath,
		lock: flock.New(lockPath),
	}
}

// Path returns the log file path.
func (j *Journal) Path() string {
	return j.path
}

// Lock acquires the exclusive append lock, blocking until available.
func (j *Journal) Lock() error {
	if err := j.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire log lock: %w", err)
	}
	return nil
}

// RLock acquires the shared replay lock, blocking until available.
func (j *Journal) RLock() error {
	if err := j.lock.RLock(); err != nil {
		return fmt.Errorf("failed to acquire shared log lock: %w", err)
	}
	return nil
}

// Unlock releases whichever lock is held.
func (j *Journal) Unlock() error {
	return j.lock.Unlock()
}

// Size returns the current byte length of the log. A missing log reads
// as zero length so a fresh store replays nothing.
func (j *Journal) Size() (int64, error) {
	info, err := os.Stat(j.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat log: %w", err)
	}
	return info.Size(), nil
}

// AppendLocked writes one complete record line to the end of the log
// in a single write call, fsyncs, and closes. The caller must hold the
// exclusive lock. Returns the number of bytes appended.
func (j *Journal) AppendLocked(line []byte) (int, error) {
	// #nosec G304 - path is fixed at store open
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log for append: %w", err)
	}

	n, err := f.Write(line)
	if err != nil {
		_ = f.Close()
		return n, fmt.Errorf("failed to append log record: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return n, fmt.Errorf("failed to sync log: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to close log: %w", err)
	}
	return n, nil
}

// Append acquires the exclusive lock, appends one record line, and
// releases the lock.
func (j *Journal) Append(line []byte) (int, error) {
	if err := j.Lock(); err != nil {
		return 0, err
	}
	defer func() { _ = j.Unlock() }()
	return j.AppendLocked(line)
}

// ReadFromLocked returns the log bytes from offset to the current end.
// The caller must hold at least the shared lock. Reading past the end
// of a shorter-than-expected log is the caller's truncation signal;
// this helper only reads what exists.
func (j *Journal) ReadFromLocked(offset int64) ([]byte, error) {
	// #nosec G304 - path is fixed at store open
	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat log: %w", err)
	}
	if offset >= info.Size() {
		return nil, nil
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read log suffix: %w", err)
	}
	return buf, nil
}

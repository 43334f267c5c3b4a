// Package store manages the on-disk lifecycle of a jwz store: creating
// the store directory, discovering it from a working directory, and
// opening it into a live repository.
//
// Store directory layout:
//
//	<root>/
//	  messages.jsonl   append-only log (source of truth)
//	  messages.db      index (plus *.db-wal, *.db-shm while open)
//	  .gitignore       listing the index artifacts and the lock file
//	  lock             advisory-lock sentinel (mode 0600)
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/femtomc/jwz/internal/journal"
	"github.com/femtomc/jwz/internal/storage"
	"github.com/femtomc/jwz/internal/storage/sqlite"
	"github.com/femtomc/jwz/internal/types"
)

// Store directory names. DirName is preferred for new stores; both are
// recognised during discovery.
const (
	DirName    = ".jwz"
	AltDirName = ".zawinski"
)

// File names inside the store directory.
const (
	LogName      = "messages.jsonl"
	DatabaseName = "messages.db"
	LockName     = "lock"
	IgnoreName   = ".gitignore"
)

// gitignore lists the index artifacts: only the log is meant to be
// checked in or synchronized.
const gitignore = `messages.db
messages.db-wal
messages.db-shm
lock
`

// Store is an open jwz store. It owns the repository handle and keeps
// the lock file handle for its whole lifetime.
type Store struct {
	root    string
	lock    *os.File
	storage storage.Storage
}

// Init creates a new store directory under parent and returns its
// path. The directory gets an empty log, the ignore file, and the lock
// sentinel; the index is not created until first open. Fails with
// types.ErrStoreExists when the directory is already there.
func Init(parent string) (string, error) {
	root := filepath.Join(parent, DirName)

	if err := os.Mkdir(root, 0o755); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%s: %w", root, types.ErrStoreExists)
		}
		return "", fmt.Errorf("failed to create store directory: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(root, LogName), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create log: %w", err)
	}
	if err := logFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close log: %w", err)
	}

	if err := os.WriteFile(filepath.Join(root, IgnoreName), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("failed to write ignore file: %w", err)
	}

	lockFile, err := os.OpenFile(filepath.Join(root, LockName), os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create lock file: %w", err)
	}
	if err := lockFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close lock file: %w", err)
	}

	return root, nil
}

// Discover walks upward from dir looking for a store root. It resolves
// dir to its real path first so discovery behaves the same under
// symlinked working directories. Fails with types.ErrStoreNotFound at
// the filesystem root.
func Discover(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}

	for {
		for _, name := range []string{DirName, AltDirName} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", types.ErrStoreNotFound
		}
		dir = parent
	}
}

// Open opens the store rooted at root. The index is created on first
// open; schema and additive migrations run every time, then replay
// brings the index up to date with the log before any query is served.
func Open(ctx context.Context, root string, opts ...sqlite.Option) (*Store, error) {
	lockPath := filepath.Join(root, LockName)

	// The lock handle is held (not locked) for the store's lifetime so
	// the sentinel exists with the right mode before any flock call.
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	j := journal.New(filepath.Join(root, LogName), lockPath)
	st, err := sqlite.New(ctx, filepath.Join(root, DatabaseName), j, opts...)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	return &Store{
		root:    root,
		lock:    lock,
		storage: st,
	}, nil
}

// Root returns the store directory path.
func (s *Store) Root() string {
	return s.root
}

// Storage returns the repository API.
func (s *Store) Storage() storage.Storage {
	return s.storage
}

// Close releases the repository and the lock file handle.
func (s *Store) Close() error {
	err := s.storage.Close()
	if cerr := s.lock.Close(); err == nil {
		err = cerr
	}
	return err
}

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// lockFileName is created inside the document's processed directory.
const lockFileName = ".ingest.lock"

// lockRetryDelay is the polling interval while waiting for a held lock.
const lockRetryDelay = 250 * time.Millisecond

// DocumentLock is a cross-process lock over one document's artifact
// directory, so two ingest runs never OCR the same pages concurrently.
// It guards artifacts only; the relational store needs no lock.
type DocumentLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDocumentLock creates a lock for the artifact directory dir.
func NewDocumentLock(dir string) *DocumentLock {
	lockPath := filepath.Join(dir, lockFileName)
	return &DocumentLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. A lock held by another
// process yields ERR_204_LOCK_HELD.
func (l *DocumentLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return amerrors.New(amerrors.ErrCodeLockHeld, "document is being ingested by another process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("Wait for the other ingest to finish, or pass --wait-lock.")
	}
	l.locked = true
	return nil
}

// Lock waits until the lock is acquired or ctx is done.
func (l *DocumentLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return amerrors.New(amerrors.ErrCodeLockHeld, "timed out waiting for document lock", ctx.Err()).
			WithDetail("lock", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked lock is a no-op.
func (l *DocumentLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DocumentLock) Path() string {
	return l.path
}

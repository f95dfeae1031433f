package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

func TestDocumentLock_TryLockUnlock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed", "WM3900")
	lock := NewDocumentLock(dir)

	require.NoError(t, lock.TryLock())
	assert.FileExists(t, lock.Path())
	assert.Equal(t, filepath.Join(dir, ".ingest.lock"), lock.Path())

	require.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock(), "double unlock is a no-op")

	next := NewDocumentLock(dir)
	require.NoError(t, next.TryLock(), "released lock can be taken again")
	_ = next.Unlock()
}

func TestDocumentLock_HeldByAnother(t *testing.T) {
	// Given: one handle holds the document lock
	dir := t.TempDir()
	first := NewDocumentLock(dir)
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()

	// When: a second handle tries to take it
	err := NewDocumentLock(dir).TryLock()

	// Then: it is refused with a lock-held error
	assert.Equal(t, amerrors.ErrCodeLockHeld, amerrors.GetCode(err))
}

func TestDocumentLock_LockWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	first := NewDocumentLock(dir)
	require.NoError(t, first.TryLock())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		_ = first.Unlock()
	}()

	second := NewDocumentLock(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, second.Lock(ctx))
	assert.Equal(t, amerrors.ErrCodeLockHeld, amerrors.GetCode(NewDocumentLock(dir).TryLock()))
	_ = second.Unlock()
	wg.Wait()
}

func TestDocumentLock_LockTimesOut(t *testing.T) {
	dir := t.TempDir()
	first := NewDocumentLock(dir)
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := NewDocumentLock(dir).Lock(ctx)

	assert.Error(t, err)
}

// Package index keeps the secondary search indexes consistent with the
// relational chunk table: delta synchronization, targeted removal, and
// consistency checking.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/store"
)

// DefaultBatchSize bounds how many documents are handed to one
// Index call. Embedding indexes send one request per batch.
const DefaultBatchSize = 64

// ChunkSource is the relational side of synchronization.
type ChunkSource interface {
	// ChunkIDs returns every chunk id that has content.
	ChunkIDs(ctx context.Context) ([]int64, error)

	// UnindexedChunks returns chunks with content whose id is not in indexed.
	UnindexedChunks(ctx context.Context, indexed map[int64]struct{}) ([]store.Document, error)
}

// SyncResult reports what one Sync call added, per index name.
type SyncResult struct {
	Added    map[string]int
	Duration time.Duration
}

// Total returns the number of entries added across all indexes.
func (r SyncResult) Total() int {
	n := 0
	for _, v := range r.Added {
		n += v
	}
	return n
}

// Synchronizer brings every configured index up to date with the chunk
// table. Sync only adds entries and is safe to call repeatedly; only
// Forget removes entries.
type Synchronizer struct {
	source    ChunkSource
	indexes   []store.SearchIndex
	batchSize int
}

// NewSynchronizer creates a synchronizer over the given indexes.
func NewSynchronizer(source ChunkSource, indexes ...store.SearchIndex) *Synchronizer {
	return &Synchronizer{
		source:    source,
		indexes:   indexes,
		batchSize: DefaultBatchSize,
	}
}

// Indexes returns the managed indexes.
func (s *Synchronizer) Indexes() []store.SearchIndex {
	return s.indexes
}

// Sync indexes every chunk missing from each index. Indexes that can
// compute the delta themselves (FTS5) do so in one statement; the others
// receive the set difference between chunk ids and their indexed ids.
func (s *Synchronizer) Sync(ctx context.Context) (SyncResult, error) {
	start := time.Now()
	res := SyncResult{Added: make(map[string]int, len(s.indexes))}

	for _, idx := range s.indexes {
		n, err := s.syncOne(ctx, idx)
		if err != nil {
			return res, amerrors.New(amerrors.ErrCodeIndexFailed,
				fmt.Sprintf("failed to sync %s index", idx.Name()), err)
		}
		res.Added[idx.Name()] = n
	}

	res.Duration = time.Since(start)
	slog.Info("sync_complete",
		slog.Int("added", res.Total()),
		slog.Int("indexes", len(s.indexes)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (s *Synchronizer) syncOne(ctx context.Context, idx store.SearchIndex) (int, error) {
	if ds, ok := idx.(store.DeltaSyncer); ok {
		return ds.SyncDelta(ctx)
	}

	indexed, err := idx.IndexedIDs(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := s.source.UnindexedChunks(ctx, indexed)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(docs); i += s.batchSize {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		end := min(i+s.batchSize, len(docs))
		if err := idx.Index(ctx, docs[i:end]); err != nil {
			return i, err
		}
		slog.Debug("sync_batch_indexed",
			slog.String("index", idx.Name()),
			slog.Int("batch_end", end),
			slog.Int("total", len(docs)))
	}

	if p, ok := idx.(store.Persister); ok && len(docs) > 0 {
		if err := p.Save(); err != nil {
			return len(docs), err
		}
	}
	return len(docs), nil
}

// Forget removes entries for the given chunk ids from every index.
// Unknown ids are ignored.
func (s *Synchronizer) Forget(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, idx := range s.indexes {
		if err := idx.Delete(ctx, ids); err != nil {
			return amerrors.New(amerrors.ErrCodeIndexFailed,
				fmt.Sprintf("failed to remove entries from %s index", idx.Name()), err)
		}
		if p, ok := idx.(store.Persister); ok {
			if err := p.Save(); err != nil {
				return amerrors.New(amerrors.ErrCodeIndexFailed,
					fmt.Sprintf("failed to save %s index", idx.Name()), err)
			}
		}
	}
	slog.Info("index_entries_forgotten", slog.Int("count", len(ids)))
	return nil
}

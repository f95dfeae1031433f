package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// FTSIndex implements SearchIndex over the chunks_fts FTS5 table that
// lives in the manual database. The FTS rowid is the chunk id.
type FTSIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	closed    bool
	stopWords map[string]struct{}
}

var (
	_ SearchIndex = (*FTSIndex)(nil)
	_ DeltaSyncer = (*FTSIndex)(nil)
)

// NewFTSIndex returns an index sharing the store's connection. Closing the
// index does not close the store.
func NewFTSIndex(st *SQLiteStore, stopWords []string) *FTSIndex {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	return &FTSIndex{
		db:        st.DB(),
		stopWords: BuildStopWordMap(stopWords),
	}
}

// Name implements SearchIndex.
func (f *FTSIndex) Name() string { return "fts" }

// Search returns chunks matching any query term, ranked by BM25.
func (f *FTSIndex) Search(ctx context.Context, collection, query string, k int) ([]Hit, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	terms := QueryTerms(query, f.stopWords)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	// bm25() is negative with lower = better, so ascending order is best first.
	rows, err := f.db.QueryContext(ctx, `
		SELECT rowid, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score, rowid
		LIMIT ?`, FTSMatchExpr(terms), k)
	if err != nil {
		return nil, fmt.Errorf("fts search failed: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		h.Score = -h.Score
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// IndexedIDs implements SearchIndex.
func (f *FTSIndex) IndexedIDs(ctx context.Context) (map[int64]struct{}, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := f.db.QueryContext(ctx, `SELECT rowid FROM chunks_fts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query IDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ID: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Index adds documents. FTS5 has no REPLACE, so an existing row is
// deleted first.
func (f *FTSIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks_fts WHERE rowid = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts(rowid, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	for _, doc := range docs {
		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing chunk %d: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, doc.Content); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Delete implements SearchIndex.
func (f *FTSIndex) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("index is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	q := fmt.Sprintf("DELETE FROM chunks_fts WHERE rowid IN (%s)", strings.Join(placeholders, ","))
	if _, err := f.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	return nil
}

// SyncDelta indexes every chunk missing from chunks_fts in one statement
// and returns the number of rows added. Existing entries are untouched.
func (f *FTSIndex) SyncDelta(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, fmt.Errorf("index is closed")
	}

	res, err := f.db.ExecContext(ctx, `
		INSERT INTO chunks_fts(rowid, content)
		SELECT id, content FROM chunks
		WHERE id NOT IN (SELECT rowid FROM chunks_fts)`)
	if err != nil {
		return 0, amerrors.New(amerrors.ErrCodeIndexFailed, "fts delta sync failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, amerrors.New(amerrors.ErrCodeIndexFailed, "fts delta sync failed", err)
	}
	slog.Debug("fts_delta_synced", slog.Int64("added", n))
	return int(n), nil
}

// Close marks the index closed. The shared connection is owned by the store.
func (f *FTSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func checkCollection(collection string) error {
	if collection != CollectionChunks {
		return amerrors.ValidationError(fmt.Sprintf("unknown collection %q", collection), nil)
	}
	return nil
}

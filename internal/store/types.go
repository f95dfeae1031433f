// Package store provides relational persistence for manuals and chunks
// (SQLite) and the secondary search indexes kept in sync with it
// (SQLite FTS5, Bleve, HNSW).
package store

import (
	"context"
	"fmt"
	"time"
)

// CollectionChunks is the only collection the indexes serve.
const CollectionChunks = "chunks"

// Manual is one ingested document.
type Manual struct {
	ID         int64
	FileName   string   // unique per ingestion
	Models     []string // inferred model codes, ordered
	Language   string
	Title      string
	CreatedAt  string // YYYY-MM-DD or empty
	IngestedAt time.Time
}

// ManualInput holds the attributes written by UpsertManual.
type ManualInput struct {
	FileName  string
	Models    []string
	Language  string
	Title     string
	CreatedAt string
}

// ChunkInput holds the attributes written by InsertChunk.
type ChunkInput struct {
	ManualID  int64
	SectionID string // empty stores NULL
	Page      int    // 1-based; 0 stores NULL for non-paged chunks
	Content   string
	Meta      map[string]string
}

// Chunk is one persisted unit of extracted text, normally one page.
type Chunk struct {
	ID        int64
	ManualID  int64
	SectionID string
	Page      int // 0 when the chunk is not paged
	Content   string
	Meta      map[string]string
}

// ContextRow is a chunk hydrated with its optional page image.
type ContextRow struct {
	ChunkID   int64
	Content   string
	ManualID  int64
	Page      int
	PageImage string // empty when no image is recorded for the page
}

// Stats summarizes the relational store.
type Stats struct {
	Manuals    int
	Chunks     int
	PageImages int
}

// Document is the unit handed to a search index.
type Document struct {
	ID      int64 // chunk id
	Content string
}

// Hit is one ranked search result. Higher scores are better.
type Hit struct {
	ID    int64
	Score float64
}

// SearchIndex is a secondary index over chunk content, keyed by chunk id.
// It is eventually consistent with the relational store.
type SearchIndex interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Search returns up to k hits in descending relevance.
	Search(ctx context.Context, collection, query string, k int) ([]Hit, error)

	// IndexedIDs returns every chunk id currently in the index.
	IndexedIDs(ctx context.Context) (map[int64]struct{}, error)

	// Index adds documents. Existing ids are replaced.
	Index(ctx context.Context, docs []Document) error

	// Delete removes entries by chunk id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []int64) error

	Close() error
}

// DeltaSyncer is implemented by indexes that can compute and apply the
// missing-entry delta themselves, inside the relational store.
type DeltaSyncer interface {
	SyncDelta(ctx context.Context) (int, error)
}

// Persister is implemented by in-memory indexes that must be saved
// explicitly after changes.
type Persister interface {
	Save() error
}

// Embedder turns text into vectors for the vector index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (delete the vector index and run 'mindual sync')", e.Expected, e.Got)
}

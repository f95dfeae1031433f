// Package search turns a question into ranked manual context: the
// retriever queries a search index and hydrates hits from the relational
// store, and the synthesizer hands that context to an LLM.
package search

import (
	"context"
	"log/slog"
	"strings"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/store"
)

// DefaultMaxDocs is the number of contexts retrieved when k is not set.
const DefaultMaxDocs = 5

// ContextRecord is one hydrated search hit.
type ContextRecord struct {
	ChunkID   int64   `json:"chunk_id"`
	Content   string  `json:"text"`
	ManualID  int64   `json:"manual_id"`
	Page      int     `json:"page"`
	Score     float64 `json:"score"`
	PageImage string  `json:"page_image,omitempty"`
}

// Hydrator loads a chunk with its page image. A nil row with a nil error
// means the chunk no longer exists.
type Hydrator interface {
	Hydrate(ctx context.Context, chunkID int64) (*store.ContextRow, error)
}

// Retriever assembles ordered context for a query.
type Retriever struct {
	index    store.SearchIndex
	hydrator Hydrator
	maxDocs  int
}

// NewRetriever creates a retriever. maxDocs <= 0 uses DefaultMaxDocs.
func NewRetriever(index store.SearchIndex, hydrator Hydrator, maxDocs int) *Retriever {
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocs
	}
	return &Retriever{index: index, hydrator: hydrator, maxDocs: maxDocs}
}

// Retrieve returns up to k contexts in the index's order. k <= 0 uses the
// configured default.
//
// Hits whose chunk no longer exists are dropped. No hits, or no surviving
// rows, give an empty non-nil slice. An index failure is reported as
// ERR_503_SEARCH_FAILED so callers can tell it apart from "nothing found".
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]ContextRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, amerrors.New(amerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if k <= 0 {
		k = r.maxDocs
	}

	hits, err := r.index.Search(ctx, store.CollectionChunks, query, k)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed, "search index query failed", err).
			WithDetail("index", r.index.Name())
	}

	out := make([]ContextRecord, 0, len(hits))
	for _, h := range hits {
		row, err := r.hydrator.Hydrate(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			slog.Debug("retrieve_hydration_miss", slog.Int64("chunk_id", h.ID))
			continue
		}
		out = append(out, ContextRecord{
			ChunkID:   h.ID,
			Content:   row.Content,
			ManualID:  row.ManualID,
			Page:      row.Page,
			Score:     h.Score,
			PageImage: row.PageImage,
		})
	}

	slog.Debug("retrieve_complete",
		slog.String("index", r.index.Name()),
		slog.Int("hits", len(hits)),
		slog.Int("contexts", len(out)))
	return out, nil
}

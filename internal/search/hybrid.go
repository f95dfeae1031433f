package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/mindual/internal/store"
)

// HybridIndex fans a query out to several member indexes in parallel and
// fuses their rankings with RRF. A failing member is logged and skipped;
// the query fails only when every member fails.
type HybridIndex struct {
	members []store.SearchIndex
	weights []float64
	fusion  *RRFFusion
}

var _ store.SearchIndex = (*HybridIndex)(nil)

// NewHybridIndex creates a hybrid index. weights are per member and may
// be nil for equal weights.
func NewHybridIndex(members []store.SearchIndex, weights []float64, rrfK int) *HybridIndex {
	return &HybridIndex{
		members: members,
		weights: weights,
		fusion:  NewRRFFusion(rrfK),
	}
}

// Name implements store.SearchIndex.
func (h *HybridIndex) Name() string {
	names := make([]string, len(h.members))
	for i, m := range h.members {
		names[i] = m.Name()
	}
	return "hybrid(" + strings.Join(names, "+") + ")"
}

// Search implements store.SearchIndex. Each member is asked for 2k hits so
// chunks ranked just below k in one list can still surface after fusion.
func (h *HybridIndex) Search(ctx context.Context, collection, query string, k int) ([]store.Hit, error) {
	if k <= 0 {
		return []store.Hit{}, nil
	}

	lists := make([][]store.Hit, len(h.members))
	errs := make([]error, len(h.members))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range h.members {
		g.Go(func() error {
			hits, err := m.Search(gctx, collection, query, 2*k)
			if err != nil {
				errs[i] = err
				return nil // let the other members finish
			}
			lists[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			slog.Warn("hybrid_member_failed",
				slog.String("index", h.members[i].Name()),
				slog.String("error", err.Error()))
		}
	}
	if failed == len(h.members) && failed > 0 {
		return nil, fmt.Errorf("all %d member indexes failed: %w", failed, errs[0])
	}

	fused := h.fusion.Fuse(lists, h.weights)
	if len(fused) > k {
		fused = fused[:k]
	}
	hits := make([]store.Hit, len(fused))
	for i, f := range fused {
		hits[i] = store.Hit{ID: f.ID, Score: f.RRFScore}
	}
	return hits, nil
}

// IndexedIDs returns the ids present in every member.
func (h *HybridIndex) IndexedIDs(ctx context.Context) (map[int64]struct{}, error) {
	var out map[int64]struct{}
	for _, m := range h.members {
		ids, err := m.IndexedIDs(ctx)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = make(map[int64]struct{}, len(ids))
			for id := range ids {
				out[id] = struct{}{}
			}
			continue
		}
		for id := range out {
			if _, ok := ids[id]; !ok {
				delete(out, id)
			}
		}
	}
	if out == nil {
		out = map[int64]struct{}{}
	}
	return out, nil
}

// Index forwards to every member.
func (h *HybridIndex) Index(ctx context.Context, docs []store.Document) error {
	for _, m := range h.members {
		if err := m.Index(ctx, docs); err != nil {
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	return nil
}

// Delete forwards to every member.
func (h *HybridIndex) Delete(ctx context.Context, ids []int64) error {
	for _, m := range h.members {
		if err := m.Delete(ctx, ids); err != nil {
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	return nil
}

// Close is a no-op: members are owned and closed by whoever opened them.
func (h *HybridIndex) Close() error { return nil }

package search

import (
	"context"
	"sync/atomic"

	"github.com/Aman-CERP/mindual/internal/store"
)

// stubIndex returns fixed hits or a fixed error.
type stubIndex struct {
	name  string
	hits  []store.Hit
	err   error
	calls atomic.Int64
	lastK atomic.Int64
}

func (s *stubIndex) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubIndex) Search(ctx context.Context, _, _ string, k int) ([]store.Hit, error) {
	s.calls.Add(1)
	s.lastK.Store(int64(k))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *stubIndex) IndexedIDs(context.Context) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(s.hits))
	for _, h := range s.hits {
		out[h.ID] = struct{}{}
	}
	return out, nil
}

func (s *stubIndex) Index(context.Context, []store.Document) error { return nil }
func (s *stubIndex) Delete(context.Context, []int64) error         { return nil }
func (s *stubIndex) Close() error                                  { return nil }

// mapHydrator serves rows from a map; missing ids are misses.
type mapHydrator struct {
	rows map[int64]*store.ContextRow
	err  error
}

func (m *mapHydrator) Hydrate(_ context.Context, id int64) (*store.ContextRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[id], nil
}

// recordingGenerator records prompts.
type recordingGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mindual/internal/store"
)

func TestHybridIndex_FusesMembers(t *testing.T) {
	// Given: a lexical and a vector member with overlapping results
	lex := &stubIndex{name: "fts", hits: hitsOf(10, 20, 30)}
	vec := &stubIndex{name: "vector", hits: hitsOf(30, 10, 40)}
	h := NewHybridIndex([]store.SearchIndex{lex, vec}, nil, 60)

	// When: searching for two hits
	hits, err := h.Search(context.Background(), store.CollectionChunks, "q", 2)
	require.NoError(t, err)

	// Then: the overlapping chunks come first and members were asked for 2k
	require.Len(t, hits, 2)
	assert.ElementsMatch(t, []int64{10, 30}, []int64{hits[0].ID, hits[1].ID})
	assert.Equal(t, int64(4), lex.lastK.Load())
	assert.Equal(t, int64(4), vec.lastK.Load())
	assert.Equal(t, "hybrid(fts+vector)", h.Name())
}

func TestHybridIndex_DegradesWhenOneMemberFails(t *testing.T) {
	lex := &stubIndex{name: "fts", hits: hitsOf(1, 2)}
	vec := &stubIndex{name: "vector", err: errors.New("embedding backend down")}
	h := NewHybridIndex([]store.SearchIndex{lex, vec}, nil, 60)

	hits, err := h.Search(context.Background(), store.CollectionChunks, "q", 5)

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, []int64{hits[0].ID, hits[1].ID})
}

func TestHybridIndex_FailsWhenAllMembersFail(t *testing.T) {
	h := NewHybridIndex([]store.SearchIndex{
		&stubIndex{err: errors.New("a down")},
		&stubIndex{err: errors.New("b down")},
	}, nil, 60)

	_, err := h.Search(context.Background(), store.CollectionChunks, "q", 5)

	assert.ErrorContains(t, err, "all 2 member indexes failed")
}

func TestHybridIndex_IndexedIDsIntersect(t *testing.T) {
	h := NewHybridIndex([]store.SearchIndex{
		&stubIndex{hits: hitsOf(1, 2, 3)},
		&stubIndex{hits: hitsOf(2, 3, 4)},
	}, nil, 60)

	ids, err := h.IndexedIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{2: {}, 3: {}}, ids)
}

func TestHybridIndex_NonPositiveK(t *testing.T) {
	lex := &stubIndex{hits: hitsOf(1)}
	h := NewHybridIndex([]store.SearchIndex{lex}, nil, 60)

	hits, err := h.Search(context.Background(), store.CollectionChunks, "q", 0)

	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, int64(0), lex.calls.Load())
}

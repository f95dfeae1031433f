package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/store"
)

func TestRetrieve_PreservesIndexOrder(t *testing.T) {
	// Given: an index returning ids out of numeric order
	idx := &stubIndex{hits: []store.Hit{
		{ID: 30, Score: 9.1},
		{ID: 10, Score: 4.2},
		{ID: 20, Score: 1.5},
	}}
	hyd := &mapHydrator{rows: map[int64]*store.ContextRow{
		10: {ChunkID: 10, Content: "ten", ManualID: 1, Page: 1},
		20: {ChunkID: 20, Content: "twenty", ManualID: 1, Page: 2, PageImage: "p2.jpg"},
		30: {ChunkID: 30, Content: "thirty", ManualID: 2, Page: 7},
	}}
	r := NewRetriever(idx, hyd, 5)

	// When: retrieving
	got, err := r.Retrieve(context.Background(), "filter", 3)
	require.NoError(t, err)

	// Then: contexts follow the index order with scores carried over
	require.Len(t, got, 3)
	assert.Equal(t, []int64{30, 10, 20}, []int64{got[0].ChunkID, got[1].ChunkID, got[2].ChunkID})
	assert.Equal(t, 9.1, got[0].Score)
	assert.Equal(t, "thirty", got[0].Content)
	assert.Equal(t, int64(2), got[0].ManualID)
	assert.Equal(t, 7, got[0].Page)
	assert.Equal(t, "p2.jpg", got[2].PageImage)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRetrieve_DropsHydrationMisses(t *testing.T) {
	idx := &stubIndex{hits: []store.Hit{{ID: 1, Score: 3}, {ID: 2, Score: 2}, {ID: 3, Score: 1}}}
	hyd := &mapHydrator{rows: map[int64]*store.ContextRow{
		1: {Content: "one"},
		3: {Content: "three"},
	}}

	got, err := NewRetriever(idx, hyd, 5).Retrieve(context.Background(), "q", 3)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "three", got[1].Content)
}

func TestRetrieve_EmptyResultsAreNonNil(t *testing.T) {
	tests := []struct {
		name string
		idx  *stubIndex
		hyd  *mapHydrator
	}{
		{"no hits", &stubIndex{hits: []store.Hit{}}, &mapHydrator{}},
		{"no rows", &stubIndex{hits: []store.Hit{{ID: 5}}}, &mapHydrator{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRetriever(tt.idx, tt.hyd, 5).Retrieve(context.Background(), "q", 5)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestRetrieve_IndexFailureIsSearchFailed(t *testing.T) {
	idx := &stubIndex{err: errors.New("fts5: syntax error")}

	got, err := NewRetriever(idx, &mapHydrator{}, 5).Retrieve(context.Background(), "q", 5)

	assert.Nil(t, got)
	assert.Equal(t, amerrors.ErrCodeSearchFailed, amerrors.GetCode(err))
	assert.ErrorContains(t, err, "fts5: syntax error")
}

func TestRetrieve_HydrationErrorPropagates(t *testing.T) {
	idx := &stubIndex{hits: []store.Hit{{ID: 1}}}
	hyd := &mapHydrator{err: amerrors.PersistenceError("db locked", nil)}

	_, err := NewRetriever(idx, hyd, 5).Retrieve(context.Background(), "q", 5)

	assert.Equal(t, amerrors.ErrCodePersistence, amerrors.GetCode(err))
}

func TestRetrieve_DefaultsKAndRejectsBlankQuery(t *testing.T) {
	idx := &stubIndex{hits: []store.Hit{}}
	r := NewRetriever(idx, &mapHydrator{}, 0)

	_, err := r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxDocs), idx.lastK.Load())

	_, err = r.Retrieve(context.Background(), "  ", 3)
	assert.Equal(t, amerrors.ErrCodeQueryEmpty, amerrors.GetCode(err))
	assert.Equal(t, int64(1), idx.calls.Load())
}

func TestRetrieve_AgainstSQLiteAndFTS(t *testing.T) {
	// Given: a real store with FTS-indexed chunks and one page image
	st, err := store.OpenSQLite("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	ctx := context.Background()
	mid, err := st.UpsertManual(ctx, store.ManualInput{FileName: "WM3900.pdf"})
	require.NoError(t, err)
	_, err = st.InsertChunk(ctx, store.ChunkInput{ManualID: mid, Page: 1, Content: "전원 버튼을 누르세요"})
	require.NoError(t, err)
	_, err = st.InsertChunk(ctx, store.ChunkInput{ManualID: mid, Page: 4, Content: "배수 필터 청소 방법"})
	require.NoError(t, err)
	require.NoError(t, st.UpsertPageImage(ctx, mid, 4, "data/interim/WM3900/page_4.jpg"))
	fts := store.NewFTSIndex(st, nil)
	_, err = fts.SyncDelta(ctx)
	require.NoError(t, err)

	// When: asking about the filter
	got, err := NewRetriever(fts, st, 5).Retrieve(ctx, "필터 청소", 5)
	require.NoError(t, err)

	// Then: the page 4 chunk comes back with its image
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Page)
	assert.Equal(t, mid, got[0].ManualID)
	assert.Equal(t, "data/interim/WM3900/page_4.jpg", got[0].PageImage)
}

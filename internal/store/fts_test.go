package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

func seedChunks(t *testing.T, st *SQLiteStore, contents ...string) []int64 {
	t.Helper()
	mid := seedManual(t, st, "seed.pdf")
	ids := make([]int64, 0, len(contents))
	for i, c := range contents {
		id, err := st.InsertChunk(context.Background(), ChunkInput{ManualID: mid, Page: i + 1, Content: c})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestFTSIndex_SyncDeltaAddsOnlyMissing(t *testing.T) {
	// Given: three chunks, one of them already indexed
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedChunks(t, st, "filter cleaning", "door lock error", "drain pump noise")
	idx := NewFTSIndex(st, nil)
	require.NoError(t, idx.Index(ctx, []Document{{ID: ids[0], Content: "filter cleaning"}}))

	// When: syncing the delta twice
	added, err := idx.SyncDelta(ctx)
	require.NoError(t, err)
	again, err := idx.SyncDelta(ctx)
	require.NoError(t, err)

	// Then: the two missing chunks are added once and nothing is removed
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, again)
	indexed, err := idx.IndexedIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, indexed, 3)
	for _, id := range ids {
		assert.Contains(t, indexed, id)
	}
}

func TestFTSIndex_SearchRanksMatchingChunks(t *testing.T) {
	// Given: indexed chunks in Korean and English
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedChunks(t, st,
		"세탁기 필터 청소 방법",
		"door lock error code",
		"필터 교체 주기",
	)
	idx := NewFTSIndex(st, nil)
	_, err := idx.SyncDelta(ctx)
	require.NoError(t, err)

	// When: searching for a term shared by two chunks
	hits, err := idx.Search(ctx, CollectionChunks, "필터", 10)
	require.NoError(t, err)

	// Then: exactly those chunks match with positive scores
	require.Len(t, hits, 2)
	got := []int64{hits[0].ID, hits[1].ID}
	assert.ElementsMatch(t, []int64{ids[0], ids[2]}, got)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestFTSIndex_SearchToleratesFTSSyntax(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedChunks(t, st, "error code E3 means door lock")
	idx := NewFTSIndex(st, nil)
	_, err := idx.SyncDelta(ctx)
	require.NoError(t, err)

	hits, err := idx.Search(ctx, CollectionChunks, `what does "E3" mean? (door*) AND`, 5)

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, ids[0], hits[0].ID)
}

func TestFTSIndex_SearchEmptyCases(t *testing.T) {
	st := newTestStore(t)
	idx := NewFTSIndex(st, nil)
	ctx := context.Background()

	hits, err := idx.Search(ctx, CollectionChunks, "   ", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, CollectionChunks, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, CollectionChunks, "nomatch", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestFTSIndex_UnknownCollection(t *testing.T) {
	st := newTestStore(t)
	idx := NewFTSIndex(st, nil)

	_, err := idx.Search(context.Background(), "pages", "filter", 5)

	assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
}

func TestFTSIndex_DeleteAndReindex(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedChunks(t, st, "filter one", "filter two")
	idx := NewFTSIndex(st, nil)
	_, err := idx.SyncDelta(ctx)
	require.NoError(t, err)

	require.NoError(t, idx.Delete(ctx, []int64{ids[0], 12345}))
	hits, err := idx.Search(ctx, CollectionChunks, "filter", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[1], hits[0].ID)

	// Re-indexing an existing id replaces its content.
	require.NoError(t, idx.Index(ctx, []Document{{ID: ids[1], Content: "pump"}}))
	hits, err = idx.Search(ctx, CollectionChunks, "filter", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFTSIndex_ClosedDoesNotCloseStore(t *testing.T) {
	st := newTestStore(t)
	idx := NewFTSIndex(st, nil)

	require.NoError(t, idx.Close())
	_, err := idx.Search(context.Background(), CollectionChunks, "x1", 5)
	assert.Error(t, err)

	_, err = st.Stats(context.Background())
	assert.NoError(t, err)
}

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsistencyChecker_ReportsMissingAndOrphans(t *testing.T) {
	// Given: two chunks, an index holding one of them plus an orphan
	st, ids := newStoreWithChunks(t, "filter", "door")
	rec := newRecordingIndex("rec")
	rec.entries[ids[0]] = "filter"
	rec.entries[777] = "gone"
	checker := NewConsistencyChecker(st, NewSynchronizer(st, rec))

	// When: checking
	res, err := checker.Check(context.Background())
	require.NoError(t, err)

	// Then: one missing and one orphan are reported for that index
	assert.False(t, res.Consistent())
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, IndexReport{Indexed: 2, Missing: 1, Orphans: 1}, res.Reports["rec"])
	assert.ElementsMatch(t, []Inconsistency{
		{Type: InconsistencyMissing, Index: "rec", ChunkID: ids[1]},
		{Type: InconsistencyOrphan, Index: "rec", ChunkID: 777},
	}, res.Inconsistencies)
}

func TestConsistencyChecker_RepairConverges(t *testing.T) {
	// Given: an inconsistent index
	st, ids := newStoreWithChunks(t, "filter", "door")
	rec := newRecordingIndex("rec")
	rec.entries[777] = "gone"
	checker := NewConsistencyChecker(st, NewSynchronizer(st, rec))
	ctx := context.Background()
	res, err := checker.Check(ctx)
	require.NoError(t, err)

	// When: repairing
	require.NoError(t, checker.Repair(ctx, res))

	// Then: a second check is clean
	again, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, again.Consistent())
	assert.Len(t, rec.entries, len(ids))
	assert.NotContains(t, rec.entries, int64(777))
}

func TestConsistencyChecker_CleanIndex(t *testing.T) {
	st, _ := newStoreWithChunks(t, "filter")
	rec := newRecordingIndex("rec")
	sync := NewSynchronizer(st, rec)
	_, err := sync.Sync(context.Background())
	require.NoError(t, err)

	res, err := NewConsistencyChecker(st, sync).Check(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Consistent())
	assert.Equal(t, IndexReport{Indexed: 1}, res.Reports["rec"])
}

func TestInconsistencyType_String(t *testing.T) {
	assert.Equal(t, "missing", InconsistencyMissing.String())
	assert.Equal(t, "orphan", InconsistencyOrphan.String())
	assert.Equal(t, "unknown", InconsistencyType(9).String())
}

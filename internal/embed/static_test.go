package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_UnitLengthAndDeterministic(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder()
	ctx := context.Background()

	// When: embedding the same text twice
	a, err := e.Embed(ctx, "세탁기 필터 청소")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "세탁기 필터 청소")
	require.NoError(t, err)

	// Then: the vectors are identical and normalized
	assert.Len(t, a, StaticDimensions)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, magnitude(a), 1e-5)
}

func TestStaticEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	query, err := e.Embed(ctx, "필터 청소 방법")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "필터 청소 방법 안내")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "door lock error code E3")
	require.NoError(t, err)

	assert.Greater(t, similarity(query, related), similarity(query, unrelated))
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   ")

	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Zero(t, magnitude(vec))
}

func TestStaticEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	batch, err := e.EmbedBatch(ctx, []string{"pump", "door"})
	require.NoError(t, err)
	single, err := e.Embed(ctx, "door")
	require.NoError(t, err)

	require.Len(t, batch, 2)
	assert.Equal(t, single, batch[1])
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")

	assert.Error(t, err)
}

func TestExtractNgrams_UsesRunes(t *testing.T) {
	assert.Equal(t, []string{"세탁기", "탁기는"}, extractNgrams([]rune("세탁기는"), 3))
	assert.Equal(t, []string{}, extractNgrams([]rune("ab"), 3))
}

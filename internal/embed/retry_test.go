package embed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// flakyEmbedder fails its first failures calls with err, then delegates.
type flakyEmbedder struct {
	*mockEmbedder
	failures atomic.Int64
	err      error
}

func (f *flakyEmbedder) fail() error {
	if f.failures.Add(-1) >= 0 {
		return f.err
	}
	return nil
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := f.fail(); err != nil {
		f.embedCalls.Add(1)
		return nil, err
	}
	return f.mockEmbedder.Embed(ctx, text)
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := f.fail(); err != nil {
		f.batchCalls.Add(1)
		return nil, err
	}
	return f.mockEmbedder.EmbedBatch(ctx, texts)
}

func newFlaky(failures int, err error) *flakyEmbedder {
	f := &flakyEmbedder{mockEmbedder: newMockEmbedder(8), err: err}
	f.failures.Store(int64(failures))
	return f
}

// recordingPolicy retries up to retries times and records the delays
// instead of sleeping.
func recordingPolicy(retries int, slept *[]time.Duration) amerrors.Policy {
	p := amerrors.DefaultPolicy()
	p.Retries = retries
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return p
}

func TestRetryingEmbedder_BatchBacksOffOnRateLimit(t *testing.T) {
	// Given: an embedder rate limited on its first three calls
	inner := newFlaky(3, amerrors.RateLimited("gemini embed_batch rate limited", nil))
	var slept []time.Duration
	emb := NewRetryingEmbedder(inner, recordingPolicy(6, &slept))

	// When: embedding a batch
	vecs, err := emb.EmbedBatch(context.Background(), []string{"배수 필터", "전원"})

	// Then: it succeeds on the fourth attempt after three waits
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int64(4), inner.batchCalls.Load())
	assert.Len(t, slept, 3)
}

func TestRetryingEmbedder_QueryBacksOffOnUnavailable(t *testing.T) {
	inner := newFlaky(1, amerrors.Unavailable("gemini embed unavailable", nil))
	var slept []time.Duration
	emb := NewRetryingEmbedder(inner, recordingPolicy(6, &slept))

	vec, err := emb.Embed(context.Background(), "필터 청소")

	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, int64(2), inner.embedCalls.Load())
	assert.Len(t, slept, 1)
}

func TestRetryingEmbedder_PermanentErrorFailsFast(t *testing.T) {
	inner := newFlaky(5, amerrors.ExternalError("gemini embed rejected the API key", nil))
	var slept []time.Duration
	emb := NewRetryingEmbedder(inner, recordingPolicy(6, &slept))

	_, err := emb.EmbedBatch(context.Background(), []string{"x"})

	assert.Equal(t, amerrors.ErrCodeExternalFailed, amerrors.GetCode(err))
	assert.Equal(t, int64(1), inner.batchCalls.Load())
	assert.Empty(t, slept)
}

func TestRetryingEmbedder_ExhaustedRetries(t *testing.T) {
	inner := newFlaky(10, amerrors.RateLimited("gemini embed rate limited", nil))
	var slept []time.Duration
	emb := NewRetryingEmbedder(inner, recordingPolicy(3, &slept))

	_, err := emb.Embed(context.Background(), "x")

	assert.Equal(t, amerrors.ErrCodeRetriesExhausted, amerrors.GetCode(err))
	assert.Equal(t, int64(3), inner.embedCalls.Load())
}

func TestRetryingEmbedder_PassesThrough(t *testing.T) {
	inner := newMockEmbedder(16)
	emb := NewRetryingEmbedder(inner, amerrors.DefaultPolicy())

	assert.Equal(t, 16, emb.Dimensions())
	assert.Equal(t, "mock-model", emb.ModelName())
	require.NoError(t, emb.Close())
	assert.True(t, inner.closed)
}

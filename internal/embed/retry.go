package embed

import (
	"context"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// RetryingEmbedder runs every call of a remote embedder through the retry
// executor, so a rate-limited embedding request backs off instead of
// failing the sync or the query.
type RetryingEmbedder struct {
	inner  Embedder
	policy amerrors.Policy
}

// NewRetryingEmbedder wraps inner with policy.
func NewRetryingEmbedder(inner Embedder, policy amerrors.Policy) *RetryingEmbedder {
	return &RetryingEmbedder{inner: inner, policy: policy}
}

// Embed implements Embedder.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return amerrors.Execute(ctx, r.policy, "embed", func(ctx context.Context) ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

// EmbedBatch implements Embedder. A retry resends the whole batch.
func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return amerrors.Execute(ctx, r.policy, "embed batch", func(ctx context.Context) ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}

// Dimensions passes through to the inner embedder.
func (r *RetryingEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (r *RetryingEmbedder) ModelName() string { return r.inner.ModelName() }

// Close closes the inner embedder.
func (r *RetryingEmbedder) Close() error { return r.inner.Close() }

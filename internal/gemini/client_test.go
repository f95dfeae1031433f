package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		transient bool
	}{
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), amerrors.ErrCodeRateLimited, true},
		{"grpc unavailable", status.Error(codes.Unavailable, "backend"), amerrors.ErrCodeServiceUnavailable, true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad image"), amerrors.ErrCodeExternalFailed, false},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "key"), amerrors.ErrCodeExternalFailed, false},
		{"http 429", &googleapi.Error{Code: 429, Message: "slow down"}, amerrors.ErrCodeRateLimited, true},
		{"http 503", &googleapi.Error{Code: 503}, amerrors.ErrCodeServiceUnavailable, true},
		{"http 400", &googleapi.Error{Code: 400}, amerrors.ErrCodeExternalFailed, false},
		{"wrapped http 429", fmt.Errorf("call: %w", &googleapi.Error{Code: 429}), amerrors.ErrCodeRateLimited, true},
		{"breaker open", gobreaker.ErrOpenState, amerrors.ErrCodeExternalFailed, false},
		{"breaker half-open", gobreaker.ErrTooManyRequests, amerrors.ErrCodeExternalFailed, false},
		{"untyped quota message", errors.New("Quota exceeded for model"), "", true},
		{"untyped other", errors.New("connection reset"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("ocr", tt.err)

			assert.Equal(t, tt.wantCode, amerrors.GetCode(got))
			assert.Equal(t, tt.transient, amerrors.IsTransient(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_PassesThroughContextAndCodedErrors(t *testing.T) {
	assert.Nil(t, classify("ocr", nil))
	assert.Same(t, context.Canceled, classify("ocr", context.Canceled))

	coded := amerrors.ValidationError("bad mime", nil)
	assert.Same(t, coded, classify("ocr", coded))
}

func TestCall_BreakerOpensOnRepeatedOutages(t *testing.T) {
	// Given: a client whose backend is down
	c := newClient(Config{}.withDefaults())
	calls := 0
	down := func(context.Context) (string, error) {
		calls++
		return "", status.Error(codes.Unavailable, "backend down")
	}

	// When: three calls fail
	for range 3 {
		_, err := call(context.Background(), c, "generate", down)
		require.Equal(t, amerrors.ErrCodeServiceUnavailable, amerrors.GetCode(err))
	}

	// Then: the fourth fails fast with a permanent error without reaching the backend
	_, err := call(context.Background(), c, "generate", down)
	assert.Equal(t, 3, calls)
	assert.Equal(t, amerrors.ErrCodeExternalFailed, amerrors.GetCode(err))
	assert.False(t, amerrors.IsTransient(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCall_RateLimitsDoNotTripBreaker(t *testing.T) {
	c := newClient(Config{}.withDefaults())
	calls := 0
	limited := func(context.Context) (string, error) {
		calls++
		return "", status.Error(codes.ResourceExhausted, "429")
	}

	for range 5 {
		_, err := call(context.Background(), c, "ocr", limited)
		assert.Equal(t, amerrors.ErrCodeRateLimited, amerrors.GetCode(err))
	}

	assert.Equal(t, 5, calls)
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestCall_ReturnsValueAndHonorsCanceledContext(t *testing.T) {
	c := newClient(Config{RPM: 60}.withDefaults())

	got, err := call(context.Background(), c, "embed", func(context.Context) ([]float32, error) {
		return []float32{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = call(ctx, c, "embed", func(context.Context) ([]float32, error) {
		t.Fatal("should not be called")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{APIKey: "  "})

	assert.Equal(t, amerrors.ErrCodeMissingAPIKey, amerrors.GetCode(err))
}

func TestConfigDefaults(t *testing.T) {
	c := newClient(Config{}.withDefaults())

	assert.Equal(t, DefaultEmbeddingDimensions, c.Dimensions())
	assert.Equal(t, DefaultEmbeddingModel, c.ModelName())
	assert.Equal(t, DefaultModel, c.cfg.Model)
	assert.NoError(t, c.Close())
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("| 항목 | 값 |\n"),
				genai.Blob{MIMEType: "image/png"},
				genai.Text("| 전압 | 220V |"),
			}},
		}},
	}

	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "| 항목 | 값 |\n| 전압 | 220V |", text)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Equal(t, amerrors.ErrCodeExternalFailed, amerrors.GetCode(err))
}

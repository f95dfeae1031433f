// Package gemini adapts the Google Gemini API to the OCR, generation and
// embedding interfaces used by ingestion and retrieval.
//
// One Client is built by the CLI layer and injected everywhere it is
// needed. Every call passes a client-side rate limiter and a circuit
// breaker, and SDK errors are classified into retryable and permanent
// CodedErrors. Retrying itself is left to amerrors.Execute.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/Aman-CERP/mindual/internal/embed"
	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

const (
	// DefaultModel is used for OCR and answers.
	DefaultModel = "gemini-2.0-flash"

	// DefaultEmbeddingModel is used for chunk and query embeddings.
	DefaultEmbeddingModel = "text-embedding-004"

	// DefaultEmbeddingDimensions matches text-embedding-004.
	DefaultEmbeddingDimensions = 768

	// DefaultRPM is the free-tier request budget per minute.
	DefaultRPM = 15
)

// Config configures a Client.
type Config struct {
	APIKey              string
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int

	// RPM caps requests per minute on the client side. Zero disables it.
	RPM int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	return c
}

// Client is a Gemini API client. It satisfies extract.Recognizer,
// search.Generator and embed.Embedder.
type Client struct {
	cfg     Config
	sdk     *genai.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

var _ embed.Embedder = (*Client)(nil)

// NewClient connects to the Gemini API with cfg.APIKey.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, amerrors.New(amerrors.ErrCodeMissingAPIKey, "GEMINI_API_KEY is not set", nil).
			WithSuggestion("Export GEMINI_API_KEY or add it to .env.")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, amerrors.ExternalError("failed to create Gemini client", err)
	}

	c := newClient(cfg)
	c.sdk = gc
	return c, nil
}

// newClient builds the limiter and breaker around an unset SDK client.
func newClient(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		breaker: newBreaker(),
		limiter: newLimiter(cfg.RPM),
	}
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), max(1, rpm/10))
}

// call runs fn behind the limiter and the breaker and classifies its error.
func call[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, classify(op, err)
		}
		return v, nil
	})
	if err != nil {
		err = classify(op, err)
		slog.Debug("gemini_call_failed",
			slog.String("op", op),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("code", amerrors.GetCode(err)))
		return zero, err
	}

	slog.Debug("gemini_call",
		slog.String("op", op),
		slog.Duration("elapsed", time.Since(start)))
	return res.(T), nil
}

// Recognize transcribes one page image. mime is e.g. "image/jpeg".
func (c *Client) Recognize(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	return call(ctx, c, "ocr", func(ctx context.Context) (string, error) {
		model := c.sdk.GenerativeModel(c.cfg.Model)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt), genai.Blob{MIMEType: mime, Data: image})
		if err != nil {
			return "", err
		}
		return responseText(resp)
	})
}

// Generate answers a text prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return call(ctx, c, "generate", func(ctx context.Context) (string, error) {
		model := c.sdk.GenerativeModel(c.cfg.Model)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return responseText(resp)
	})
}

// Embed returns the embedding of one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, c, "embed", func(ctx context.Context) ([]float32, error) {
		em := c.sdk.EmbeddingModel(c.cfg.EmbeddingModel)
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, amerrors.ExternalError("gemini returned no embedding", nil)
		}
		return resp.Embedding.Values, nil
	})
}

// EmbedBatch embeds texts in requests of at most embed.DefaultBatchSize.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embed.DefaultBatchSize {
		end := min(start+embed.DefaultBatchSize, len(texts))
		part := texts[start:end]

		vecs, err := call(ctx, c, "embed_batch", func(ctx context.Context) ([][]float32, error) {
			em := c.sdk.EmbeddingModel(c.cfg.EmbeddingModel)
			b := em.NewBatch()
			for _, t := range part {
				b.AddContent(genai.Text(t))
			}
			resp, err := em.BatchEmbedContents(ctx, b)
			if err != nil {
				return nil, err
			}
			if len(resp.Embeddings) != len(part) {
				return nil, amerrors.ExternalError(
					fmt.Sprintf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(part)), nil)
			}
			vecs := make([][]float32, len(part))
			for i, e := range resp.Embeddings {
				vecs[i] = e.Values
			}
			return vecs, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (c *Client) Dimensions() int { return c.cfg.EmbeddingDimensions }

// ModelName returns the embedding model name.
func (c *Client) ModelName() string { return c.cfg.EmbeddingModel }

// Close releases the SDK connection.
func (c *Client) Close() error {
	if c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", amerrors.ExternalError("gemini returned no candidates", nil)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

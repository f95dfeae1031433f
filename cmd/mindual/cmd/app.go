package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/mindual/internal/config"
	"github.com/Aman-CERP/mindual/internal/embed"
	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/gemini"
	"github.com/Aman-CERP/mindual/internal/index"
	"github.com/Aman-CERP/mindual/internal/search"
	"github.com/Aman-CERP/mindual/internal/store"
)

// app holds everything a command needs, opened from one configuration.
type app struct {
	cfg     *config.Config
	backend store.Backend

	store   *store.SQLiteStore
	indexes []store.SearchIndex
	search  store.SearchIndex
	sync    *index.Synchronizer

	// gemini is nil when GEMINI_API_KEY is not set.
	gemini   *gemini.Client
	embedder embed.Embedder
}

// loadConfig loads the configuration for the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, amerrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check .mindual.yaml and the user config; run 'mindual config show'.")
	}
	return cfg, nil
}

// openApp opens the store, the indexes of the configured backend and, when
// a key is set, the Gemini client. requireLLM fails early without a key.
func openApp(ctx context.Context, cfg *config.Config, requireLLM bool) (a *app, err error) {
	backend, err := store.ParseBackend(cfg.Search.Backend)
	if err != nil {
		return nil, amerrors.ConfigError("invalid search backend", err)
	}
	a = &app{cfg: cfg, backend: backend}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Gemini.APIKey != "" || requireLLM {
		a.gemini, err = gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			Model:          cfg.Gemini.Model,
			EmbeddingModel: cfg.Embeddings.Model,
			RPM:            cfg.Gemini.RPM,
		})
		if err != nil {
			return nil, err
		}
	}

	a.store, err = store.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if backend.NeedsEmbedder() {
		provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
		if err != nil {
			return nil, amerrors.ConfigError("invalid embedding provider", err)
		}
		var remote embed.Embedder
		if a.gemini != nil {
			remote = embed.NewRetryingEmbedder(a.gemini, a.policy())
		}
		a.embedder, err = embed.NewEmbedder(provider, remote, cfg.Embeddings.CacheSize)
		if err != nil {
			return nil, amerrors.New(amerrors.ErrCodeMissingAPIKey, "embedder unavailable", err)
		}
	}

	// Assign through a local so a nil embedder stays an untyped nil.
	var emb store.Embedder
	if a.embedder != nil {
		emb = a.embedder
	}
	a.indexes, err = store.OpenIndexes(a.store, backend, cfg.IndexDir(), emb)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeIndexFailed, "failed to open search indexes", err)
	}

	a.search = a.indexes[0]
	if len(a.indexes) > 1 {
		a.search = search.NewHybridIndex(a.indexes, nil, cfg.Search.RRFConstant)
	}
	a.sync = index.NewSynchronizer(a.store, a.indexes...)

	slog.Debug("app_opened",
		slog.String("db", a.store.Path()),
		slog.String("backend", string(backend)),
		slog.Bool("llm", a.gemini != nil),
		slog.String("embedder", a.embedderName()))
	return a, nil
}

// policy returns the retry policy for external calls.
func (a *app) policy() amerrors.Policy {
	return amerrors.Policy{
		Retries: a.cfg.Retry.Retries,
		Base:    a.cfg.Retry.Base,
		Jitter:  a.cfg.Retry.Jitter,
	}
}

func (a *app) retriever() *search.Retriever {
	return search.NewRetriever(a.search, a.store, a.cfg.Search.MaxDocs)
}

// synthesizer returns nil when no LLM is configured.
func (a *app) synthesizer() *search.Synthesizer {
	if a.gemini == nil {
		return nil
	}
	return search.NewSynthesizer(a.retriever(), a.gemini).WithRetry(a.policy())
}

func (a *app) embedderName() string {
	if a.embedder == nil {
		return ""
	}
	return a.embedder.ModelName()
}

// Close releases everything openApp opened. The Gemini-backed embedder
// shares the client, so only the client is closed for it.
func (a *app) Close() {
	var errs []error
	for _, idx := range a.indexes {
		errs = append(errs, idx.Close())
	}
	if a.embedder != nil && a.embedder.ModelName() == "static" {
		errs = append(errs, a.embedder.Close())
	}
	if a.gemini != nil {
		errs = append(errs, a.gemini.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("app_close_failed", slog.String("error", err.Error()))
	}
}

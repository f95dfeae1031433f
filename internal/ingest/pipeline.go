// Package ingest runs the staged conversion of one PDF manual into
// persisted, indexed page chunks: render, OCR, merge, infer metadata,
// persist, then synchronize the search indexes.
//
// Every stage is resumable. Page images and text artifacts stay on disk
// between runs, the manual row is upserted by file name, and index sync
// only adds what is missing.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/extract"
	"github.com/Aman-CERP/mindual/internal/index"
	"github.com/Aman-CERP/mindual/internal/meta"
	"github.com/Aman-CERP/mindual/internal/render"
	"github.com/Aman-CERP/mindual/internal/store"
)

// ChunkPolicy decides what happens to a manual's existing chunks when it
// is ingested again.
type ChunkPolicy string

const (
	// PolicyReplace swaps the manual's chunks on the processed pages for
	// the new ones. Pages outside the processed range keep their chunks.
	PolicyReplace ChunkPolicy = "replace"

	// PolicyAppend inserts new chunks next to the old ones, duplicating
	// pages on every re-ingest.
	PolicyAppend ChunkPolicy = "append"
)

// ParsePolicy validates a policy name. Empty selects PolicyReplace.
func ParsePolicy(s string) (ChunkPolicy, error) {
	switch ChunkPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReplace, "":
		return PolicyReplace, nil
	case PolicyAppend:
		return PolicyAppend, nil
	default:
		return "", amerrors.ValidationError(
			fmt.Sprintf("unknown chunk policy %q (valid options: replace, append)", s), nil)
	}
}

const (
	// DefaultDataDir holds the interim/ and processed/ trees.
	DefaultDataDir = "data"

	// DefaultLanguage is recorded on manuals when none is given.
	DefaultLanguage = "ko"
)

// Repository is the relational side of ingestion.
type Repository interface {
	UpsertManual(ctx context.Context, in store.ManualInput) (int64, error)
	UpsertPageImage(ctx context.Context, manualID int64, page int, path string) error
	InsertChunks(ctx context.Context, chunks []store.ChunkInput) ([]int64, error)
	ReplacePageChunks(ctx context.Context, manualID int64, span store.PageSpan, chunks []store.ChunkInput) ([]int64, error)
}

// Indexer keeps the search indexes in step with the repository.
type Indexer interface {
	Sync(ctx context.Context) (index.SyncResult, error)
	Forget(ctx context.Context, ids []int64) error
}

var _ Indexer = (*index.Synchronizer)(nil)

// Options describes one ingestion run.
type Options struct {
	PDFPath  string
	DataDir  string
	Language string
	Title    string
	DPI      int
	Range    extract.Range
	Policy   ChunkPolicy

	// Clean removes the document's images and artifacts before rendering.
	Clean bool

	// TextLayer seeds artifacts from the PDF's embedded text so only
	// scanned pages go through OCR.
	TextLayer bool

	// WaitLock blocks on a document lock held by another process instead
	// of failing.
	WaitLock bool
}

// Summary reports one completed ingestion.
type Summary struct {
	ManualID   int64
	FileName   string
	Models     []string
	CreatedAt  string
	Pages      int // artifacts in the selected range
	OCRPages   int // pages sent to OCR during this run
	Chunks     int // chunks inserted
	Replaced   int // chunks removed by the replace policy
	Indexed    int // index entries added by sync
	MergedPath string
	Duration   time.Duration
}

// Pipeline ingests documents.
type Pipeline struct {
	renderer  render.Renderer
	extractor *extract.Extractor
	repo      Repository
	indexer   Indexer
	textLayer func(pdfPath, outDir string) (int, error)
}

// NewPipeline wires the ingestion stages.
func NewPipeline(renderer render.Renderer, extractor *extract.Extractor, repo Repository, indexer Indexer) *Pipeline {
	return &Pipeline{
		renderer:  renderer,
		extractor: extractor,
		repo:      repo,
		indexer:   indexer,
		textLayer: render.TextLayer,
	}
}

// Paths returns the interim (images) and processed (text) directories of
// a document under dataDir.
func Paths(dataDir, pdfPath string) (interim, processed string) {
	stem := Stem(pdfPath)
	return filepath.Join(dataDir, "interim", stem), filepath.Join(dataDir, "processed", stem)
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run ingests one document. Any stage failure aborts the document; what
// was already written to disk is reused by the next run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	opts, err := p.normalize(opts)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(opts.PDFPath)
	stem := Stem(opts.PDFPath)
	interimDir, processedDir := Paths(opts.DataDir, opts.PDFPath)

	slog.Info("ingest_started",
		slog.String("file", fileName),
		slog.String("policy", string(opts.Policy)),
		slog.Int("dpi", opts.DPI))

	lock := NewDocumentLock(processedDir)
	if opts.WaitLock {
		err = lock.Lock(ctx)
	} else {
		err = lock.TryLock()
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if opts.Clean {
		for _, dir := range []string{interimDir, processedDir} {
			if err := cleanDir(dir); err != nil {
				return nil, err
			}
		}
	}

	images, err := p.renderer.Render(ctx, opts.PDFPath, interimDir, opts.DPI)
	if err != nil {
		return nil, err
	}

	if opts.TextLayer {
		n, err := p.textLayer(opts.PDFPath, processedDir)
		if err != nil {
			slog.Warn("text_layer_failed", slog.String("file", fileName), slog.String("error", err.Error()))
		} else {
			slog.Info("text_layer_seeded", slog.String("file", fileName), slog.Int("pages", n))
		}
	}

	artifacts, err := p.extractor.Extract(ctx, images, processedDir, opts.Range)
	if err != nil {
		return nil, err
	}

	textPaths := make([]string, len(artifacts))
	ocrPages := 0
	for i, a := range artifacts {
		textPaths[i] = a.TextPath
		if !a.Reused {
			ocrPages++
		}
	}
	mergedPath := filepath.Join(processedDir, MergedFileName)
	if _, err := Merge(textPaths, mergedPath); err != nil {
		return nil, err
	}

	inferred := meta.Infer(stem)
	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = stem
	}
	manualID, err := p.repo.UpsertManual(ctx, store.ManualInput{
		FileName:  fileName,
		Models:    inferred.Models,
		Language:  opts.Language,
		Title:     title,
		CreatedAt: inferred.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		ManualID:   manualID,
		FileName:   fileName,
		Models:     inferred.Models,
		CreatedAt:  inferred.CreatedAt,
		Pages:      len(artifacts),
		OCRPages:   ocrPages,
		MergedPath: mergedPath,
	}

	for i, img := range images {
		if err := p.repo.UpsertPageImage(ctx, manualID, i+1, img); err != nil {
			return nil, err
		}
	}

	chunks, err := pageChunks(manualID, fileName, artifacts)
	if err != nil {
		return nil, err
	}

	// The chunk write is one transaction, so a failure leaves the manual's
	// previous chunks in place. Index entries follow only after it commits.
	if opts.Policy == PolicyReplace {
		span := store.PageSpan{From: artifacts[0].Page, To: artifacts[len(artifacts)-1].Page}
		removed, err := p.repo.ReplacePageChunks(ctx, manualID, span, chunks)
		if err != nil {
			return nil, err
		}
		sum.Replaced = len(removed)
		if err := p.indexer.Forget(ctx, removed); err != nil {
			return nil, err
		}
	} else if _, err := p.repo.InsertChunks(ctx, chunks); err != nil {
		return nil, err
	}
	sum.Chunks = len(chunks)

	res, err := p.indexer.Sync(ctx)
	if err != nil {
		return nil, err
	}
	sum.Indexed = res.Total()
	sum.Duration = time.Since(start)

	slog.Info("ingest_complete",
		slog.Int64("manual_id", manualID),
		slog.String("file", fileName),
		slog.Int("pages", sum.Pages),
		slog.Int("ocr_pages", sum.OCRPages),
		slog.Int("chunks", sum.Chunks),
		slog.Int("replaced", sum.Replaced),
		slog.Int("indexed", sum.Indexed),
		slog.Duration("duration", sum.Duration))
	return sum, nil
}

// pageChunks reads one chunk per artifact, skipping pages whose text is
// blank.
func pageChunks(manualID int64, fileName string, artifacts []extract.Artifact) ([]store.ChunkInput, error) {
	chunkMeta := map[string]string{"type": "page", "source": "ocr", "file": fileName}
	chunks := make([]store.ChunkInput, 0, len(artifacts))
	for _, a := range artifacts {
		raw, err := os.ReadFile(a.TextPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s: %w", a.TextPath, err)
		}
		content := strings.TrimSpace(string(raw))
		if content == "" {
			slog.Debug("chunk_skipped_empty", slog.Int("page", a.Page))
			continue
		}
		chunks = append(chunks, store.ChunkInput{
			ManualID: manualID,
			Page:     a.Page,
			Content:  content,
			Meta:     chunkMeta,
		})
	}
	return chunks, nil
}

func (p *Pipeline) normalize(opts Options) (Options, error) {
	if strings.TrimSpace(opts.PDFPath) == "" {
		return opts, amerrors.ValidationError("no PDF given", nil).
			WithSuggestion("Pass --pdf path/to/manual.pdf")
	}
	info, err := os.Stat(opts.PDFPath)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, amerrors.New(amerrors.ErrCodeFileNotFound, "PDF not found", err).
				WithDetail("path", opts.PDFPath)
		}
		return opts, fmt.Errorf("failed to stat %s: %w", opts.PDFPath, err)
	}
	if info.IsDir() {
		return opts, amerrors.ValidationError(opts.PDFPath+" is a directory", nil)
	}

	if opts.DataDir == "" {
		opts.DataDir = DefaultDataDir
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.DPI <= 0 {
		opts.DPI = render.DefaultDPI
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return opts, err
	}
	opts.Policy = policy
	return opts, nil
}

// cleanDir removes the files of dir, keeping the document lock.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || e.Name() == lockFileName {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
		removed++
	}
	slog.Info("ingest_cleaned", slog.String("dir", dir), slog.Int("files", removed))
	return nil
}

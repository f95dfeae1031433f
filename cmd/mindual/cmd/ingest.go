package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/extract"
	"github.com/Aman-CERP/mindual/internal/ingest"
	"github.com/Aman-CERP/mindual/internal/output"
	"github.com/Aman-CERP/mindual/internal/render"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	pdf         string
	dataDir     string
	language    string
	title       string
	dpi         int
	clean       bool
	start       int
	end         int
	sleep       string
	chunkPolicy string
	textLayer   bool
	waitLock    bool
	skipCheck   bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "OCR a scanned PDF manual into the database",
		Long: `Render every page of a PDF, transcribe the pages with Gemini, and store
one chunk per page in the manual database before syncing the search indexes.

Page images go to <data-dir>/interim/<name>/ and page text to
<data-dir>/processed/<name>/. Pages whose text already exists are not sent
to OCR again, so an interrupted run can simply be repeated.

Requires pdftoppm (poppler-utils) and GEMINI_API_KEY.`,
		Example: `  mindual ingest --pdf manuals/WM3900_2024-03-15.pdf
  mindual ingest --pdf manual.pdf --start 3 --end 10 --sleep 2s
  mindual ingest --pdf manual.pdf --clean --chunk-policy replace
  mindual ingest --pdf manual.pdf --text-layer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "PDF file to ingest (required)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Directory for page images and text (default from config)")
	cmd.Flags().StringVar(&opts.language, "language", "", "Manual language (default from config)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Manual title (default: file name without extension)")
	cmd.Flags().IntVar(&opts.dpi, "dpi", 0, "Render resolution (default from config)")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Remove existing images and text for this PDF first")
	cmd.Flags().IntVar(&opts.start, "start", 0, "First page to OCR, 1-based")
	cmd.Flags().IntVar(&opts.end, "end", 0, "Last page to OCR, inclusive (0 = last page)")
	cmd.Flags().StringVar(&opts.sleep, "sleep", "", "Pause after each OCR call, e.g. 1.2s (default from config)")
	cmd.Flags().StringVar(&opts.chunkPolicy, "chunk-policy", "", "Existing chunks on re-ingest: replace or append (default from config)")
	cmd.Flags().BoolVar(&opts.textLayer, "text-layer", false, "Use the PDF's embedded text where present; OCR only the rest")
	cmd.Flags().BoolVar(&opts.waitLock, "wait-lock", false, "Wait for another ingest of the same PDF instead of failing")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the first-run system check")
	_ = cmd.MarkFlagRequired("pdf")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, opts ingestOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyIngestDefaults(&opts, cfg.Ingest.DataDir, cfg.Ingest.Language, cfg.Ingest.DPI, cfg.Ingest.Sleep, cfg.Ingest.ChunkPolicy)

	sleep, err := time.ParseDuration(opts.sleep)
	if err != nil || sleep < 0 {
		return amerrors.ValidationError(fmt.Sprintf("invalid --sleep %q", opts.sleep), err).
			WithSuggestion("Use a Go duration such as 1.2s or 500ms.")
	}
	policy, err := ingest.ParsePolicy(opts.chunkPolicy)
	if err != nil {
		return err
	}
	target := preflightTarget(cfg)
	target.DataDir = opts.dataDir
	if err := ensurePreflight(ctx, target, opts.skipCheck); err != nil {
		return err
	}

	// With --text-layer a key is only needed if some page has no text.
	a, err := openApp(ctx, cfg, !opts.textLayer)
	if err != nil {
		return err
	}
	defer a.Close()

	var recognizer extract.Recognizer = missingKeyRecognizer{}
	if a.gemini != nil {
		recognizer = a.gemini
	}
	extractor := extract.NewExtractor(recognizer,
		extract.WithPolicy(a.policy()),
		extract.WithSleep(sleep))
	pipeline := ingest.NewPipeline(render.NewPopplerRenderer(), extractor, a.store, a.sync)

	out := output.New(cmd.OutOrStdout())
	out.Statusf("📄", "Ingesting %s", opts.pdf)

	sum, err := pipeline.Run(ctx, ingest.Options{
		PDFPath:   opts.pdf,
		DataDir:   opts.dataDir,
		Language:  opts.language,
		Title:     opts.title,
		DPI:       opts.dpi,
		Range:     extract.Range{Start: opts.start, End: opts.end},
		Policy:    policy,
		Clean:     opts.clean,
		TextLayer: opts.textLayer,
		WaitLock:  opts.waitLock,
	})
	if err != nil {
		return err
	}

	printIngestSummary(out, sum, a.store.Path())
	return nil
}

// applyIngestDefaults fills flags left unset from the ingest config.
func applyIngestDefaults(opts *ingestOptions, dataDir, language string, dpi int, sleep, policy string) {
	if opts.dataDir == "" {
		opts.dataDir = dataDir
	}
	if opts.language == "" {
		opts.language = language
	}
	if opts.dpi <= 0 {
		opts.dpi = dpi
	}
	if opts.sleep == "" {
		opts.sleep = sleep
	}
	if opts.chunkPolicy == "" {
		opts.chunkPolicy = policy
	}
}

func printIngestSummary(out *output.Writer, sum *ingest.Summary, dbPath string) {
	models := strings.Join(sum.Models, ", ")
	if models == "" {
		models = "-"
	}
	created := sum.CreatedAt
	if created == "" {
		created = "-"
	}

	out.Successf("Ingested %s", sum.FileName)
	out.KeyValue(
		"manual id", fmt.Sprintf("%d", sum.ManualID),
		"models", models,
		"dated", created,
		"pages", fmt.Sprintf("%d (%d sent to OCR)", sum.Pages, sum.OCRPages),
		"chunks", fmt.Sprintf("%d inserted, %d replaced", sum.Chunks, sum.Replaced),
		"indexed", fmt.Sprintf("%d", sum.Indexed),
		"merged text", sum.MergedPath,
		"database", dbPath,
		"took", sum.Duration.Round(time.Millisecond).String(),
	)
}

// missingKeyRecognizer stands in for Gemini when ingesting with
// --text-layer and no key. It fails only if a page actually needs OCR.
type missingKeyRecognizer struct{}

func (missingKeyRecognizer) Recognize(context.Context, string, []byte, string) (string, error) {
	return "", amerrors.New(amerrors.ErrCodeMissingAPIKey, "page has no text layer and GEMINI_API_KEY is not set", nil).
		WithSuggestion("Export GEMINI_API_KEY or add it to .env.")
}

// Package extract turns rendered page images into per-page text artifacts
// through an OCR service. Artifacts are written next to each other under
// one directory, and an existing artifact is reused instead of paying for
// another OCR call, so an interrupted ingestion resumes where it stopped.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

const (
	// DefaultSleep is the courtesy pause after each OCR call.
	DefaultSleep = 1200 * time.Millisecond

	// MinArtifactSize is the size an artifact must exceed to be reused.
	MinArtifactSize = 10

	// DefaultPrompt asks for a faithful transcription of one manual page.
	DefaultPrompt = "이 이미지는 전자기기 사용설명서의 한 페이지입니다. " +
		"보이는 모든 텍스트를 가능한 정확도로 추출해 주세요. " +
		"줄바꿈과 리스트, 표 구조(가능하면 마크다운 테이블)를 보존해 주세요."
)

// Recognizer transcribes the text of one image.
type Recognizer interface {
	Recognize(ctx context.Context, prompt string, image []byte, mime string) (string, error)
}

// Range selects pages, 1-based and inclusive. Start <= 0 means the first
// page and End == 0 means the last.
type Range struct {
	Start int
	End   int
}

// bounds resolves r against n pages.
func (r Range) bounds(n int) (from, to int, err error) {
	from, to = r.Start, r.End
	if from <= 0 {
		from = 1
	}
	if to == 0 || to > n {
		to = n
	}
	if to < 0 || n == 0 || from > to {
		return 0, 0, amerrors.New(amerrors.ErrCodeInvalidRange,
			fmt.Sprintf("page range %d-%d selects none of %d pages", r.Start, r.End, n), nil)
	}
	return from, to, nil
}

// Artifact is the text file produced for one page.
type Artifact struct {
	Page      int
	ImagePath string
	TextPath  string

	// Reused is set when the artifact already existed and no OCR ran.
	Reused bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPolicy sets the retry policy for OCR calls.
func WithPolicy(p amerrors.Policy) Option {
	return func(e *Extractor) { e.policy = p }
}

// WithSleep sets the pause after each OCR call. Zero disables it.
func WithSleep(d time.Duration) Option {
	return func(e *Extractor) { e.sleep = d }
}

// WithWait replaces the context-aware sleep, for tests.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Extractor) { e.wait = wait }
}

// WithPrompt overrides the OCR prompt.
func WithPrompt(prompt string) Option {
	return func(e *Extractor) { e.prompt = prompt }
}

// Extractor runs OCR page by page.
type Extractor struct {
	recognizer Recognizer
	policy     amerrors.Policy
	sleep      time.Duration
	wait       func(ctx context.Context, d time.Duration) error
	prompt     string
}

// NewExtractor creates an extractor over recognizer.
func NewExtractor(recognizer Recognizer, opts ...Option) *Extractor {
	e := &Extractor{
		recognizer: recognizer,
		policy:     amerrors.DefaultPolicy(),
		sleep:      DefaultSleep,
		wait:       waitContext,
		prompt:     DefaultPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes outDir/<image stem>.txt for every page in r and returns
// the artifacts in page order.
//
// Pages are processed strictly one after another. A failure on any page
// aborts the whole call; the artifacts already written stay on disk and
// are picked up by the next run.
func (e *Extractor) Extract(ctx context.Context, pages []string, outDir string, r Range) ([]Artifact, error) {
	from, to, err := r.bounds(len(pages))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	artifacts := make([]Artifact, 0, to-from+1)
	for page := from; page <= to; page++ {
		img := pages[page-1]
		txt := filepath.Join(outDir, stem(img)+".txt")
		art := Artifact{Page: page, ImagePath: img, TextPath: txt}

		if reusable(txt) {
			slog.Info("ocr_page_skipped",
				slog.Int("page", page),
				slog.String("artifact", txt))
			art.Reused = true
			artifacts = append(artifacts, art)
			continue
		}

		if err := e.recognizePage(ctx, page, len(pages), img, txt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, art)

		if e.sleep > 0 {
			if err := e.wait(ctx, e.sleep); err != nil {
				return nil, err
			}
		}
	}

	slog.Info("ocr_complete",
		slog.String("dir", outDir),
		slog.Int("artifacts", len(artifacts)))
	return artifacts, nil
}

func (e *Extractor) recognizePage(ctx context.Context, page, total int, img, txt string) error {
	data, err := os.ReadFile(img)
	if err != nil {
		if os.IsNotExist(err) {
			return amerrors.New(amerrors.ErrCodeFileNotFound, "page image missing", err).
				WithDetail("path", img)
		}
		return fmt.Errorf("failed to read %s: %w", img, err)
	}

	slog.Info("ocr_page_started",
		slog.Int("page", page),
		slog.Int("total", total),
		slog.String("image", filepath.Base(img)))

	label := "OCR " + filepath.Base(img)
	text, err := amerrors.Execute(ctx, e.policy, label, func(ctx context.Context) (string, error) {
		return e.recognizer.Recognize(ctx, e.prompt, data, mimeType(img))
	})
	if err != nil {
		return fmt.Errorf("ocr failed on page %d: %w", page, err)
	}

	if err := os.WriteFile(txt, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", txt, err)
	}
	return nil
}

// reusable reports whether an artifact exists with more than
// MinArtifactSize bytes.
func reusable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > MinArtifactSize
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func mimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "image/jpeg"
}

func waitContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

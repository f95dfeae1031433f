// Package render rasterizes PDF pages to images for OCR and reads the
// embedded text layer of PDFs that have one.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

const (
	// DefaultDPI is the rasterization resolution.
	DefaultDPI = 200

	// PopplerBinary is looked up on PATH.
	PopplerBinary = "pdftoppm"
)

// Renderer converts a PDF into one image per page.
type Renderer interface {
	// Render writes outDir/page_N.jpg for every page and returns the paths
	// in page order.
	Render(ctx context.Context, pdfPath, outDir string, dpi int) ([]string, error)
}

// PageImageName returns the file name of page n's image.
func PageImageName(n int) string {
	return fmt.Sprintf("page_%d.jpg", n)
}

// PageCount returns the number of pages in a PDF.
func PageCount(pdfPath string) (n int, err error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, amerrors.New(amerrors.ErrCodeFileNotFound, "PDF not found", err).
				WithDetail("path", pdfPath)
		}
		return 0, amerrors.New(amerrors.ErrCodeRenderFailed, "failed to open PDF", err).
			WithDetail("path", pdfPath)
	}
	defer func() { _ = f.Close() }()

	// The reader panics on some malformed page trees.
	defer func() {
		if p := recover(); p != nil {
			n, err = 0, amerrors.New(amerrors.ErrCodeRenderFailed, fmt.Sprintf("malformed PDF: %v", p), nil).
				WithDetail("path", pdfPath)
		}
	}()
	return r.NumPage(), nil
}

// runFunc runs an external command.
type runFunc func(ctx context.Context, name string, args ...string) error

// PopplerRenderer renders pages with pdftoppm from poppler-utils, one
// process per page.
type PopplerRenderer struct {
	binary string
	run    runFunc
}

// NewPopplerRenderer returns a renderer using pdftoppm on PATH.
func NewPopplerRenderer() *PopplerRenderer {
	return &PopplerRenderer{binary: PopplerBinary, run: runCommand}
}

// Render implements Renderer.
func (r *PopplerRenderer) Render(ctx context.Context, pdfPath, outDir string, dpi int) ([]string, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	n, err := PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, amerrors.New(amerrors.ErrCodeRenderFailed, "PDF has no pages", nil).
			WithDetail("path", pdfPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	start := time.Now()
	paths := make([]string, 0, n)
	for page := 1; page <= n; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := filepath.Join(outDir, PageImageName(page))
		prefix := strings.TrimSuffix(out, ".jpg")
		p := strconv.Itoa(page)
		args := []string{"-jpeg", "-r", strconv.Itoa(dpi), "-f", p, "-l", p, "-singlefile", pdfPath, prefix}
		if err := r.run(ctx, r.binary, args...); err != nil {
			return nil, renderError(page, err)
		}
		if _, err := os.Stat(out); err != nil {
			return nil, renderError(page, fmt.Errorf("%s produced no image: %w", r.binary, err))
		}
		paths = append(paths, out)
	}

	slog.Info("render_complete",
		slog.String("pdf", filepath.Base(pdfPath)),
		slog.Int("pages", n),
		slog.Int("dpi", dpi),
		slog.Duration("elapsed", time.Since(start)))
	return paths, nil
}

func renderError(page int, err error) error {
	var ce *amerrors.CodedError
	if errors.As(err, &ce) {
		return ce
	}
	return amerrors.New(amerrors.ErrCodeRenderFailed, fmt.Sprintf("failed to render page %d", page), err).
		WithDetail("page", strconv.Itoa(page))
}

func runCommand(ctx context.Context, name string, args ...string) error {
	bin, err := exec.LookPath(name)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeRenderFailed, name+" not found on PATH", err).
			WithSuggestion("Install poppler-utils (apt install poppler-utils, brew install poppler).")
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// MinTextLayerBytes is the trimmed size a page's text layer must exceed
// to be written. It matches the size above which OCR artifacts are reused.
const MinTextLayerBytes = 10

// TextLayer writes outDir/page_N.txt from the PDF's embedded text for every
// page whose text layer has real content and whose artifact does not exist
// yet. OCR later reuses those files and only runs for scanned pages.
//
// It returns the number of artifacts written.
func TextLayer(pdfPath, outDir string) (written int, err error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return 0, amerrors.New(amerrors.ErrCodeRenderFailed, "failed to open PDF", err).
			WithDetail("path", pdfPath)
	}
	defer func() { _ = f.Close() }()
	defer func() {
		if p := recover(); p != nil {
			err = amerrors.New(amerrors.ErrCodeRenderFailed, fmt.Sprintf("malformed PDF: %v", p), nil).
				WithDetail("path", pdfPath)
		}
	}()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt := filepath.Join(outDir, fmt.Sprintf("page_%d.txt", i))
		if _, err := os.Stat(txt); err == nil {
			continue
		}

		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			slog.Debug("text_layer_page_failed", slog.Int("page", i), slog.String("error", err.Error()))
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) <= MinTextLayerBytes {
			continue
		}
		if err := os.WriteFile(txt, []byte(text), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", txt, err)
		}
		written++
	}

	slog.Info("text_layer_complete",
		slog.String("pdf", filepath.Base(pdfPath)),
		slog.Int("pages_written", written))
	return written, nil
}

package preflight

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/mindual/internal/render"
)

// CheckRenderer looks for pdftoppm on PATH.
func (c *Checker) CheckRenderer() CheckResult {
	result := CheckResult{Name: "renderer"}

	path, err := c.lookPath(render.PopplerBinary)
	if err != nil {
		result.Status = StatusWarn
		result.Message = render.PopplerBinary + " not found; OCR ingestion is unavailable"
		result.Details = "Install poppler-utils, or ingest born-digital PDFs with --text-layer"
		return result
	}

	result.Status = StatusPass
	result.Message = path
	return result
}

// CheckAPIKey reports whether Gemini is configured.
func (c *Checker) CheckAPIKey(set bool) CheckResult {
	result := CheckResult{Name: "gemini_api_key"}
	if !set {
		result.Status = StatusWarn
		result.Message = "GEMINI_API_KEY is not set; OCR and answers are unavailable"
		result.Details = "Export GEMINI_API_KEY or add it to a .env file in the working directory"
		return result
	}
	result.Status = StatusPass
	result.Message = "set"
	return result
}

// CheckDatabase reports whether the SQLite file exists.
func (c *Checker) CheckDatabase(path string) CheckResult {
	result := CheckResult{Name: "database"}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s not found", path)
		result.Details = "Run 'mindual init' or ingest a manual to create it"
	case info.IsDir():
		result.Status = StatusFail
		result.Required = true
		result.Message = fmt.Sprintf("%s is a directory", path)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s (%s)", path, formatBytes(uint64(info.Size())))
	}
	return result
}

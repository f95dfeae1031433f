package errors

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForCLI(t *testing.T) {
	t.Run("coded error with hint", func(t *testing.T) {
		err := New(ErrCodeMissingAPIKey, "GEMINI_API_KEY not set", nil).
			WithSuggestion("Put it in .env")

		out := FormatForCLI(err)

		assert.Contains(t, out, "Error: GEMINI_API_KEY not set")
		assert.Contains(t, out, "Hint: Put it in .env")
		assert.Contains(t, out, "Code: ERR_103_MISSING_API_KEY")
	})

	t.Run("exhausted retries", func(t *testing.T) {
		err := &RetriesExhaustedError{Label: "OCR page_3.jpg", Attempts: 6, Last: errors.New("429")}

		out := FormatForCLI(err)

		assert.Contains(t, out, "OCR page_3.jpg")
		assert.Contains(t, out, "Code: ERR_303_RETRIES_EXHAUSTED")
	})

	t.Run("plain error", func(t *testing.T) {
		out := FormatForCLI(errors.New("boom"))

		assert.Contains(t, out, "Error: boom")
		assert.Contains(t, out, "Code: ERR_601_INTERNAL")
	})

	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, FormatForCLI(nil))
	})
}

func TestLogAttrs(t *testing.T) {
	err := New(ErrCodeIndexFailed, "index failed", nil).WithDetail("index", "bleve")

	got := map[string]string{}
	for _, a := range LogAttrs(err) {
		attr := a.(slog.Attr)
		got[attr.Key] = attr.Value.String()
	}

	assert.Equal(t, ErrCodeIndexFailed, got["error_code"])
	assert.Equal(t, "bleve", got["detail_index"])
	assert.Equal(t, "false", got["retryable"])
	assert.Len(t, LogAttrs(errors.New("x")), 1)
	assert.Nil(t, LogAttrs(nil))
}

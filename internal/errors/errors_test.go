package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodedError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := errors.New("disk I/O error")

	// When: wrapping as a persistence error
	err := PersistenceError("insert chunk", original)

	// Then: the chain reaches the original
	require.NotNil(t, err)
	assert.Equal(t, original, errors.Unwrap(err))
	assert.ErrorIs(t, err, original)
	assert.Equal(t, CategoryPersistence, err.Category)
	assert.False(t, err.Retryable)
}

func TestCodedError_Error_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *CodedError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeQueryEmpty, "query is empty", nil),
			expected: "[ERR_404_QUERY_EMPTY] query is empty",
		},
		{
			name:     "wrapped cause shares message",
			err:      Wrap(ErrCodeFileNotFound, errors.New("manual.pdf missing")),
			expected: "[ERR_201_FILE_NOT_FOUND] manual.pdf missing",
		},
		{
			name:     "distinct cause",
			err:      New(ErrCodeSearchFailed, "index search failed", errors.New("no such table")),
			expected: "[ERR_503_SEARCH_FAILED] index search failed: no such table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestCodedError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodeRateLimited, "first", nil)
	b := New(ErrCodeRateLimited, "second", nil)
	c := New(ErrCodeServiceUnavailable, "other", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestCategoryAndRetryableFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		retryable bool
		severity  Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, false, SeverityError},
		{ErrCodeRenderFailed, CategoryIO, false, SeverityError},
		{ErrCodeRateLimited, CategoryExternal, true, SeverityWarning},
		{ErrCodeServiceUnavailable, CategoryExternal, true, SeverityWarning},
		{ErrCodeExternalFailed, CategoryExternal, false, SeverityError},
		{ErrCodeEmptyContent, CategoryValidation, false, SeverityError},
		{ErrCodeSchema, CategoryPersistence, false, SeverityFatal},
		{ErrCodeInternal, CategoryInternal, false, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestGetCode_FindsCodeThroughWrapping(t *testing.T) {
	inner := New(ErrCodeIndexFailed, "bleve batch failed", nil)
	wrapped := fmt.Errorf("sync: %w", inner)

	assert.Equal(t, ErrCodeIndexFailed, GetCode(wrapped))
	assert.Equal(t, CategoryPersistence, codedOf(wrapped).Category)
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeMissingAPIKey, "GEMINI_API_KEY not set", nil).
		WithDetail("env", "GEMINI_API_KEY").
		WithSuggestion("Put it in .env")

	assert.Equal(t, "GEMINI_API_KEY", err.Details["env"])
	assert.Equal(t, "Put it in .env", err.Suggestion)
	assert.True(t, IsFatal(err))
}

func TestGetCode_ExhaustedRetriesWinOverTheirCause(t *testing.T) {
	// Given: retries that gave up on a rate limit, wrapped once more
	last := RateLimited("gemini ocr rate limited", nil)
	err := fmt.Errorf("page 3: %w", &RetriesExhaustedError{Label: "OCR page_3.jpg", Attempts: 6, Last: last})

	// Then: the exhausted code is reported, the cause stays reachable
	assert.Equal(t, ErrCodeRetriesExhausted, GetCode(err))
	assert.True(t, IsRetriesExhausted(err))
	assert.ErrorIs(t, err, last, "the rate limit stays reachable")
	assert.Contains(t, FormatForCLI(err), "Code: ERR_303_RETRIES_EXHAUSTED")
}

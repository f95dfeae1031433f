package errors

import (
	"errors"
	"fmt"
)

// CodedError is the structured error type used across mindual.
// The code drives category, severity and retry classification.
type CodedError struct {
	// Code is the unique error code (e.g., "ERR_301_RATE_LIMITED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable marks transient external-capacity failures.
	Retryable bool

	// Suggestion is an actionable hint for the CLI user.
	Suggestion string
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// Is matches another CodedError by code, so errors.Is works against
// sentinel values such as ErrRetriesExhausted.
func (e *CodedError) Is(target error) bool {
	if t, ok := target.(*CodedError); ok {
		return e.Code == t.Code
	}
	return false
}

// Transient reports whether the failure is worth retrying.
func (e *CodedError) Transient() bool {
	return e.Retryable
}

// WithDetail adds a key-value detail to the error.
func (e *CodedError) WithDetail(key, value string) *CodedError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *CodedError) WithSuggestion(suggestion string) *CodedError {
	e.Suggestion = suggestion
	return e
}

// New creates a CodedError. Category, severity, and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *CodedError {
	return &CodedError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CodedError from an existing error, reusing its message.
func Wrap(code string, err error) *CodedError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CodedError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *CodedError {
	return New(ErrCodeInvalidInput, message, cause)
}

// PersistenceError wraps a relational store failure. These are never retried.
func PersistenceError(message string, cause error) *CodedError {
	return New(ErrCodePersistence, message, cause)
}

// RateLimited marks an external call rejected for capacity reasons.
func RateLimited(message string, cause error) *CodedError {
	return New(ErrCodeRateLimited, message, cause)
}

// Unavailable marks an external service that is temporarily down.
func Unavailable(message string, cause error) *CodedError {
	return New(ErrCodeServiceUnavailable, message, cause)
}

// ExternalError marks a permanent external failure (bad input, auth, ...).
func ExternalError(message string, cause error) *CodedError {
	return New(ErrCodeExternalFailed, message, cause)
}

// IsFatal reports whether the outermost coded error has fatal severity:
// the command cannot succeed until configuration is fixed.
func IsFatal(err error) bool {
	ce := codedOf(err)
	return ce != nil && ce.Severity == SeverityFatal
}

// GetCode extracts the first error code in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ce := codedOf(err); ce != nil {
		return ce.Code
	}
	return ""
}

// codedOf returns the outermost coded view of err. An exhausted retry
// loop counts as ERR_303 even though it wraps the transient error it
// gave up on.
func codedOf(err error) *CodedError {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *CodedError:
			return v
		case *RetriesExhaustedError:
			return New(ErrCodeRetriesExhausted,
				fmt.Sprintf("retries exhausted for %s after %d attempts", v.Label, v.Attempts), v.Last).
				WithSuggestion("The service is rate limiting requests. Re-run later; finished pages are reused.")
		}
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}


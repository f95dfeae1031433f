package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
	"unicode/utf8"
)

// ErrRetriesExhausted matches any RetriesExhaustedError via errors.Is.
var ErrRetriesExhausted = &CodedError{Code: ErrCodeRetriesExhausted}

// Policy configures backoff for external calls.
type Policy struct {
	// Retries is the maximum number of attempts.
	Retries int

	// Base is raised to the attempt number to get the delay in seconds.
	Base float64

	// Jitter is the upper bound in seconds of a uniform random addition.
	Jitter float64

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the backoff used for OCR and LLM calls.
func DefaultPolicy() Policy {
	return Policy{
		Retries: 6,
		Base:    1.5,
		Jitter:  0.3,
	}
}

// Delay returns the wait before retrying after the given 0-based attempt,
// without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	secs := math.Pow(p.Base, float64(attempt))
	return time.Duration(secs * float64(time.Second))
}

func (p Policy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * p.Jitter * float64(time.Second))
}

// RetriesExhaustedError is returned when every attempt failed with a
// transient error.
type RetriesExhaustedError struct {
	Label    string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("[%s] retries exhausted for %s after %d attempts: %v",
		ErrCodeRetriesExhausted, e.Label, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// Is lets errors.Is(err, ErrRetriesExhausted) succeed even though the
// last cause is itself a retryable CodedError.
func (e *RetriesExhaustedError) Is(target error) bool {
	if t, ok := target.(*CodedError); ok {
		return t.Code == ErrCodeRetriesExhausted
	}
	return false
}

// Transient is false: the caller must not wrap exhausted retries in
// another retry loop.
func (e *RetriesExhaustedError) Transient() bool {
	return false
}

// Execute runs op, retrying transient failures with exponential backoff
// plus jitter. Any other failure is returned immediately without waiting.
// label identifies the call in logs and in the exhausted error.
func Execute[T any](ctx context.Context, p Policy, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.Retries < 1 {
		p.Retries = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < p.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
		if attempt == p.Retries-1 {
			break
		}

		wait := p.Delay(attempt) + p.jitter()
		slog.Warn("retry_backoff",
			slog.String("label", label),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", p.Retries),
			slog.Duration("wait", wait),
			slog.String("error", truncate(err.Error(), 80)))

		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, &RetriesExhaustedError{Label: label, Attempts: p.Retries, Last: lastErr}
}

// IsRetriesExhausted reports whether err came from an exhausted retry loop.
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

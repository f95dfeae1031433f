package errors

import (
	"errors"
	"strings"
)

// transienter is implemented by errors that know whether they are
// temporary capacity failures.
type transienter interface {
	Transient() bool
}

// transientSignatures are matched against error messages from services
// that do not expose structured codes.
var transientSignatures = []string{
	"resource exhausted",
	"resource_exhausted",
	"429",
	"exceeded",
	"quota",
	"rate limit",
}

// IsTransient reports whether err is a rate-limit, quota, or exhaustion
// failure that should be retried with backoff.
//
// Typed markers anywhere in the chain win. Message matching is only a
// fallback for untyped errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}

	return matchesTransientMessage(err.Error())
}

func matchesTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, sig := range transientSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

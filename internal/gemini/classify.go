package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// classify maps a Gemini SDK error onto the error taxonomy so the retry
// executor can decide on backoff from types instead of messages.
//
// Errors that carry no structured code are wrapped untyped, leaving the
// message fallback in amerrors.IsTransient to judge them.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ce *amerrors.CodedError
	if errors.As(err, &ce) {
		return err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return amerrors.ExternalError("gemini circuit breaker is open", err).
			WithDetail("operation", op).
			WithSuggestion("The Gemini API failed repeatedly. Wait a minute and run the command again.")
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fromHTTPStatus(op, apiErr.Code, err)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return fromGRPCCode(op, st.Code(), err)
	}

	return fmt.Errorf("gemini %s: %w", op, err)
}

func fromGRPCCode(op string, code codes.Code, err error) error {
	switch code {
	case codes.ResourceExhausted:
		return amerrors.RateLimited("gemini "+op+" rate limited", err)
	case codes.Unavailable:
		return amerrors.Unavailable("gemini "+op+" unavailable", err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return amerrors.ExternalError("gemini "+op+" rejected the API key", err).
			WithSuggestion("Check GEMINI_API_KEY.")
	case codes.Unknown:
		// Not a status error at all; let the message fallback decide.
		return fmt.Errorf("gemini %s: %w", op, err)
	default:
		return amerrors.ExternalError("gemini "+op+" failed", err).
			WithDetail("grpc_code", code.String())
	}
}

func fromHTTPStatus(op string, code int, err error) error {
	switch code {
	case http.StatusTooManyRequests:
		return amerrors.RateLimited("gemini "+op+" rate limited", err)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return amerrors.Unavailable("gemini "+op+" unavailable", err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return amerrors.ExternalError("gemini "+op+" rejected the API key", err).
			WithSuggestion("Check GEMINI_API_KEY.")
	default:
		return amerrors.ExternalError("gemini "+op+" failed", err).
			WithDetail("http_status", fmt.Sprintf("%d", code))
	}
}

// breakerSuccess decides what the circuit breaker counts as a failure.
// Rate limiting is a capacity signal handled by backoff, not an outage.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return amerrors.GetCode(err) == amerrors.ErrCodeRateLimited
}

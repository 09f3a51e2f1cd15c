// Package embedding holds helpers shared by the embedding provider adapters.
// Provider failures are classified onto domain sentinels here so that the
// matching engine can decide whether a retry makes sense.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is echoed back.
const maxErrorBody = 512

// StatusError classifies a non-200 provider response.
//
//   - 401, 403 and 404 are configuration problems (bad key, unknown model).
//   - 400 and 422 reject the input.
//   - 429 and 5xx are transient and reported as upstream unavailable.
func StatusError(provider string, status int, body []byte) error {
	msg := string(body)
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		kind = domain.ErrConfiguration
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		kind = domain.ErrInvalidInput
	default:
		kind = domain.ErrUpstreamUnavailable
	}
	return fmt.Errorf("%s: %w: status %d: %s", provider, kind, status, msg)
}

// TransportError wraps a failed round trip. Context errors pass through
// unchanged; everything else is upstream unavailable.
func TransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamUnavailable, err)
}

// MalformedError reports a response that could not be used.
func MalformedError(provider, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", provider, domain.ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// ToFloat32 narrows a decoded embedding.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a referenced item, offer or index entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or contradictory input.
	// The caller can correct the call and retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indicates the embedding provider or vector store
	// failed after the internal retry. Callers may degrade to exact-title
	// matching instead of failing the request.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrConfiguration indicates the engine cannot serve requests at all:
	// missing index collection, missing credentials, dimension mismatch.
	// Raised at construction and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrMalformedResponse indicates an upstream returned a response that
	// could not be interpreted. It is not retried.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

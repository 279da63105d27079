package domain

import "errors"

var (
	// ErrNotFound signals a missing catalog record or index entry.
	ErrNotFound = errors.New("not found")
	// ErrEmptyQuery signals a blank search query.
	ErrEmptyQuery = errors.New("query is required")
	// ErrInvalidRequest signals a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrParserProviderError signals a semantic query parser failure.
	ErrParserProviderError = errors.New("parser provider error")
	// ErrStoreNotReady signals that the backing tables do not exist yet (migrations pending).
	ErrStoreNotReady = errors.New("store not ready")
	// ErrDimensionMismatch signals a vector of unexpected length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

package domain

import "errors"

var (
	// ErrBackendUnavailable signals an unreachable storage backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrSchemaMissing signals an expected table or index that does not exist.
	ErrSchemaMissing = errors.New("schema missing")
	// ErrEmbedding signals an embedding provider failure. No match can be
	// scored without a query vector, so this aborts the search call.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrMalformedRecord signals a stored row that cannot be parsed into a match.
	ErrMalformedRecord = errors.New("malformed record")
)

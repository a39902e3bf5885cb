package types

import "errors"

// Error taxonomy shared by every component. Callers match with errors.Is;
// components wrap these with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrEmbedding reports that the embedding provider was unavailable or
	// rejected the input (for example, text that is empty after truncation).
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexNotInitialized guards operations that need a loaded index.
	// Query paths self-heal by initializing lazily; it only surfaces when
	// initialization itself fails.
	ErrIndexNotInitialized = errors.New("index not initialized")

	// ErrStorage reports a disk read or write failure for the index or
	// metadata files. In-memory state is never rolled back on this error.
	ErrStorage = errors.New("storage error")

	// ErrDimensionMismatch reports a persisted vector index built for a
	// different dimensionality than the current configuration.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSearch reports a query that failed in every search mode.
	ErrSearch = errors.New("search failed")

	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrIndexFull         = errors.New("vector index is at capacity")
	ErrInconsistentIndex = errors.New("vector index and id mapping are inconsistent")
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
)

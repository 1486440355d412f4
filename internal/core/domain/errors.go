package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed or invalid caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIntegrity indicates a hash mismatch or corrupt source file.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrExtraction indicates the PDF extraction capability failed.
	ErrExtraction = errors.New("extraction failed")

	// ErrDimensionMismatch indicates an embedding width inconsistent with
	// the configured vector dimensionality. Vectors are never silently
	// truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrPrerequisiteNotMet indicates a stage was run before its
	// prerequisite stage completed.
	ErrPrerequisiteNotMet = errors.New("prerequisite stage not completed")

	// ErrCapabilityTimeout indicates an external capability call exceeded
	// its bound. A timed-out call is a failure, never an empty success.
	ErrCapabilityTimeout = errors.New("capability call timed out")

	// ErrConcurrencyConflict indicates an overlapping processing run on the
	// same document.
	ErrConcurrencyConflict = errors.New("processing already in progress")

	// ErrAlreadyProcessed marks the no-op outcome of re-running a stage
	// whose output already exists without overwrite. It is a report, not a
	// failure: callers treat it as success with zero work done.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrCompletionUnavailable indicates the completion capability is not
	// configured. Retrieval still works; answer generation is disabled.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding capability is not
	// configured. Registration and structuring still work; chunking and
	// asking need an embedding key.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCaptioningUnavailable indicates the captioning capability is not
	// configured.
	ErrCaptioningUnavailable = errors.New("captioning service unavailable")
)

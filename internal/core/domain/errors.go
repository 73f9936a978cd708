package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates a query request failed validation.
	// No partial result is ever returned alongside it.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownDataset indicates a table query referenced a dataset that
	// does not exist or has no schema.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnknownColumn indicates a table query referenced a column that is
	// not part of the dataset's schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrExtraction indicates a source's content could not be extracted.
	// Only the affected document is skipped; the prior version is kept.
	ErrExtraction = errors.New("extraction failed")

	// ErrMalformedRows indicates a structured source contained rows that
	// do not parse against the inferred schema.
	ErrMalformedRows = errors.New("malformed rows")

	// ErrProviderTransient indicates a retryable embedding provider
	// failure (rate limit, timeout). After bounded retries it fails only
	// the affected document.
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderPermanent indicates a non-retryable embedding provider
	// failure (invalid credentials). It aborts the whole ingestion run.
	ErrProviderPermanent = errors.New("permanent provider error")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Semantic ranking is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIngestInProgress indicates an ingestion run is already running.
	ErrIngestInProgress = errors.New("ingestion in progress")
)

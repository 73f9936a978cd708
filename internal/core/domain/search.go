package domain

import "fmt"

// Default query parameters.
const (
	// DefaultTopK is the number of results returned when unspecified.
	DefaultTopK = 10

	// DefaultRRFK is the reciprocal rank fusion constant.
	DefaultRRFK = 50

	// DefaultPoolSize is the overfetch pool size M: how deep each of the
	// two rankings is computed before fusion.
	DefaultPoolSize = 200
)

// QueryOptions configures a hybrid query.
// Zero-valued weights disable the corresponding ranking entirely, which
// makes the fused order identical to the other ranking's order.
type QueryOptions struct {
	// TopK is the number of results to return (default 10).
	TopK int

	// FullTextWeight scales the lexical ranking's RRF contribution.
	FullTextWeight float64

	// SemanticWeight scales the semantic ranking's RRF contribution.
	SemanticWeight float64

	// RRFK is the rank fusion constant k (default 50, must be >= 1).
	RRFK int

	// PoolSize is the overfetch pool size M. It is clamped up to TopK.
	PoolSize int
}

// DefaultQueryOptions returns options with all defaults applied and both
// rankings weighted equally.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		TopK:           DefaultTopK,
		FullTextWeight: 1.0,
		SemanticWeight: 1.0,
		RRFK:           DefaultRRFK,
		PoolSize:       DefaultPoolSize,
	}
}

// Normalise applies defaults and validates the options.
// It returns the effective options or a validation error.
func (o QueryOptions) Normalise() (QueryOptions, error) {
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	if o.RRFK == 0 {
		o.RRFK = DefaultRRFK
	}
	if o.PoolSize == 0 {
		o.PoolSize = DefaultPoolSize
	}

	if o.TopK < 0 {
		return o, fmt.Errorf("%w: topK must be positive, got %d", ErrValidation, o.TopK)
	}
	if o.RRFK < 1 {
		return o, fmt.Errorf("%w: rrfK must be >= 1, got %d", ErrValidation, o.RRFK)
	}
	if o.FullTextWeight < 0 {
		return o, fmt.Errorf("%w: fullTextWeight must be >= 0, got %g", ErrValidation, o.FullTextWeight)
	}
	if o.SemanticWeight < 0 {
		return o, fmt.Errorf("%w: semanticWeight must be >= 0, got %g", ErrValidation, o.SemanticWeight)
	}
	if o.FullTextWeight == 0 && o.SemanticWeight == 0 {
		return o, fmt.Errorf("%w: at least one of fullTextWeight and semanticWeight must be positive", ErrValidation)
	}

	// The pool must be at least as deep as the requested result count.
	if o.PoolSize < o.TopK {
		o.PoolSize = o.TopK
	}
	return o, nil
}

// SearchResult represents a single fused query hit.
type SearchResult struct {
	// ChunkID is the matched chunk.
	ChunkID int64

	// Content is the chunk's text content.
	Content string

	// Metadata is the chunk's metadata map (owning document ID, chunk
	// index, extension entries).
	Metadata map[string]any

	// Score is the fused RRF score.
	Score float64
}

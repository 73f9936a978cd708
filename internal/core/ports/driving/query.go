package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// QueryService answers hybrid retrieval queries.
type QueryService interface {
	// Query fuses semantic and lexical rankings for the text and returns
	// the top results. Queries are pure reads and honour cancellation.
	Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.SearchResult, error)
}

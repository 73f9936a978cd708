package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// DocumentService exposes document-level reads and deletion.
type DocumentService interface {
	// List returns all documents with their schema descriptors.
	List(ctx context.Context) ([]domain.Document, error)

	// FullContent returns a document's chunk contents concatenated in
	// chunk-index order.
	FullContent(ctx context.Context, documentID string) (string, error)

	// Delete removes a document, cascading to chunks and rows.
	Delete(ctx context.Context, documentID string) error
}

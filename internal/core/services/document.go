package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure DocumentManager implements the interface.
var _ driving.DocumentService = (*DocumentManager)(nil)

// DocumentManager exposes document-level reads and deletion over the
// store.
type DocumentManager struct {
	store driven.DocumentStore
}

// NewDocumentManager creates a document manager.
func NewDocumentManager(store driven.DocumentStore) *DocumentManager {
	return &DocumentManager{store: store}
}

// List returns all documents with their schema descriptors.
func (m *DocumentManager) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := m.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// FullContent returns a document's chunk contents concatenated in
// chunk-index order.
func (m *DocumentManager) FullContent(ctx context.Context, documentID string) (string, error) {
	content, err := m.store.GetFullContent(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("full content of %s: %w", documentID, err)
	}
	return content, nil
}

// Delete removes a document, cascading to its chunks and structured
// rows. The watermark is cleared too, so a reappearing source is
// re-ingested from scratch.
func (m *DocumentManager) Delete(ctx context.Context, documentID string) error {
	if err := m.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	logger.Info("Deleted document %s", documentID)
	return nil
}

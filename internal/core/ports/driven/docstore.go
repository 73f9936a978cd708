package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// LexicalHit is a full-text ranking result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID int64

	// Score is the lexical relevance score (bm25-style; higher is better).
	Score float64
}

// ChunkVector pairs a chunk ID with its stored embedding.
type ChunkVector struct {
	ChunkID   int64
	Embedding []float32
}

// DocumentStore persists documents, chunks with embeddings, and
// structured rows. Backed by SQLite.
//
// Reads observe a consistent snapshot: a replace in progress is never
// visible half-applied.
type DocumentStore interface {
	// Replace atomically upserts the document and replaces all of its
	// chunks and structured rows, updating the source watermark in the
	// same transaction. A failure mid-way leaves the prior version
	// intact. Chunk and row IDs are assigned on insert.
	Replace(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, rows []domain.StructuredRow, contentHash string) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all document metadata including schema
	// descriptors.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// GetFullContent returns a document's chunks concatenated in
	// chunk-index order.
	GetFullContent(ctx context.Context, documentID string) (string, error)

	// GetChunks retrieves chunks by ID, preserving the input order.
	// IDs that no longer exist are silently omitted.
	GetChunks(ctx context.Context, ids []int64) ([]domain.Chunk, error)

	// DeleteDocument removes a document, cascading to its chunks and
	// structured rows, and clears its watermark.
	DeleteDocument(ctx context.Context, id string) error

	// Watermark returns the content hash recorded at the last successful
	// ingestion of the source, or "" if it has never been ingested.
	Watermark(ctx context.Context, sourceID string) (string, error)

	// LexicalSearch ranks chunks by full-text relevance for the query,
	// best first, ties broken by ascending chunk ID. Query terms are
	// matched disjunctively.
	LexicalSearch(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	// ChunkVectors returns the embeddings of all stored chunks for
	// semantic ranking.
	ChunkVectors(ctx context.Context) ([]ChunkVector, error)

	// RowsForDataset returns up to limit structured rows for a dataset,
	// in insertion order.
	RowsForDataset(ctx context.Context, datasetID string, limit int) ([]domain.StructuredRow, error)

	// Close releases resources.
	Close() error
}

package domain

import "time"

// Metadata keys that are always present on chunk metadata maps.
const (
	// MetaDocumentID is the owning document's ID.
	MetaDocumentID = "document_id"

	// MetaChunkIndex is the chunk's ordinal position within the document.
	MetaChunkIndex = "chunk_index"
)

// ColumnType is the closed set of inferred column types for structured
// datasets. All later queries validate against it rather than inspecting
// row shapes at query time.
type ColumnType string

const (
	// ColumnText is free-form text.
	ColumnText ColumnType = "text"

	// ColumnNumber is a numeric value, stored as float64.
	ColumnNumber ColumnType = "number"

	// ColumnDate is a calendar date or timestamp, stored as RFC 3339.
	ColumnDate ColumnType = "date"

	// ColumnBoolean is a true/false value.
	ColumnBoolean ColumnType = "boolean"
)

// Column describes one column of a structured dataset.
type Column struct {
	// Name is the column name as it appeared in the source header.
	Name string `json:"name"`

	// Type is the inferred value type.
	Type ColumnType `json:"type"`
}

// SchemaDescriptor is the ordered column list inferred for a structured
// source at ingestion time.
type SchemaDescriptor []Column

// Column returns the descriptor for the named column.
func (s SchemaDescriptor) Column(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Document represents an ingested source with stable identity.
// Re-ingesting the same source keeps the same ID.
type Document struct {
	// ID is the stable external identifier (primary key).
	ID string

	// Title is the human-readable title.
	Title string

	// URL is the original location (file path, URL, etc).
	URL string

	// Schema is set only for structured (tabular) sources.
	Schema SchemaDescriptor

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last replaced.
	UpdatedAt time.Time
}

// IsStructured reports whether the document owns structured rows.
func (d *Document) IsStructured() bool {
	return len(d.Schema) > 0
}

// Chunk is a bounded, ordered segment of a document's text. It is the
// unit of embedding and retrieval.
type Chunk struct {
	// ID is assigned by the store on insert and is monotonic, which makes
	// it usable as the final ranking tie-break.
	ID int64

	// DocumentID links to the owning Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for semantic search.
	// All embeddings in a store share one dimension.
	Embedding []float32

	// Extra holds open extension metadata beyond the required keys.
	Extra map[string]string
}

// Metadata returns the chunk's metadata map: the required keys plus any
// extension entries.
func (c *Chunk) Metadata() map[string]any {
	m := make(map[string]any, len(c.Extra)+2)
	for k, v := range c.Extra {
		m[k] = v
	}
	m[MetaDocumentID] = c.DocumentID
	m[MetaChunkIndex] = c.Position
	return m
}

// StructuredRow is one typed row of a structured dataset.
type StructuredRow struct {
	// ID is assigned by the store on insert.
	ID int64

	// DatasetID references the Document whose Schema describes this row.
	DatasetID string

	// Data maps column names to typed values: float64 for number columns,
	// bool for boolean, RFC 3339 strings for date, string for text.
	// Keys are a subset of the dataset's schema columns.
	Data map[string]any
}

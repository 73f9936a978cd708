package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// SearchInput is the input schema for the search tool. The weights are
// pointers so an explicit zero (disable this ranking) is distinguishable
// from an omitted field (use the default).
type SearchInput struct {
	Query          string   `json:"query" jsonschema:"the text to search for"`
	TopK           int      `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	FullTextWeight *float64 `json:"full_text_weight,omitempty" jsonschema:"weight of the full-text ranking (default 1.0, 0 disables)"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty" jsonschema:"weight of the semantic ranking (default 1.0, 0 disables)"`
	RRFK           int      `json:"rrf_k,omitempty" jsonschema:"reciprocal rank fusion constant (default 50)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput represents one document's metadata.
type DocumentOutput struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	URL    string         `json:"url,omitempty"`
	Schema []ColumnOutput `json:"schema,omitempty"`
}

// ColumnOutput is one schema column of a structured dataset.
type ColumnOutput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// GetFileContentsInput is the input schema for the get_file_contents tool.
type GetFileContentsInput struct {
	DocumentID string `json:"document_id" jsonschema:"the ID of the document to read"`
}

// GetFileContentsOutput is the output schema for the get_file_contents tool.
type GetFileContentsOutput struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

// FilterInput is one column comparison in a table query.
type FilterInput struct {
	Column string `json:"column" jsonschema:"the column to compare"`
	Op     string `json:"op" jsonschema:"comparison operator: eq, ne, lt, lte, gt, gte or contains"`
	Value  any    `json:"value" jsonschema:"the value to compare against"`
}

// AggregateInput requests an aggregate instead of rows.
type AggregateInput struct {
	Func   string `json:"func" jsonschema:"aggregate function: count, sum, avg, min or max"`
	Column string `json:"column,omitempty" jsonschema:"the column to aggregate (ignored for count)"`
}

// QueryTableInput is the input schema for the query_table tool.
type QueryTableInput struct {
	DatasetID string          `json:"dataset_id" jsonschema:"the ID of the dataset to query"`
	Columns   []string        `json:"columns,omitempty" jsonschema:"columns to return (default all)"`
	Filters   []FilterInput   `json:"filters,omitempty" jsonschema:"conjunctive row filters"`
	Aggregate *AggregateInput `json:"aggregate,omitempty" jsonschema:"return a single aggregate instead of rows"`
	Limit     int             `json:"limit,omitempty" jsonschema:"maximum rows to return (default and cap 500)"`
}

// QueryTableOutput is the output schema for the query_table tool.
type QueryTableOutput struct {
	Rows      []map[string]any `json:"rows,omitempty"`
	Aggregate any              `json:"aggregate,omitempty"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid full-text and semantic search over all ingested documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List all ingested documents with their schemas",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_file_contents",
		Description: "Read the full text of a document",
	}, s.handleGetFileContents)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_table",
		Description: "Run a read-only filter/aggregate query over a structured dataset",
	}, s.handleQueryTable)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.DefaultQueryOptions()
	if input.TopK > 0 {
		opts.TopK = input.TopK
	}
	if input.FullTextWeight != nil {
		opts.FullTextWeight = *input.FullTextWeight
	}
	if input.SemanticWeight != nil {
		opts.SemanticWeight = *input.SemanticWeight
	}
	if input.RRFK != 0 {
		opts.RRFK = input.RRFK
	}

	results, err := s.ports.Query.Query(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		docID, _ := results[i].Metadata[domain.MetaDocumentID].(string)
		index, _ := results[i].Metadata[domain.MetaChunkIndex].(int)
		output.Results[i] = SearchResultOutput{
			ChunkID:    results[i].ChunkID,
			DocumentID: docID,
			ChunkIndex: index,
			Content:    results[i].Content,
			Score:      results[i].Score,
		}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.ports.Document.List(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i, doc := range docs {
		out := DocumentOutput{
			ID:    doc.ID,
			Title: doc.Title,
			URL:   doc.URL,
		}
		for _, col := range doc.Schema {
			out.Schema = append(out.Schema, ColumnOutput{
				Name: col.Name,
				Type: string(col.Type),
			})
		}
		output.Documents[i] = out
	}

	return nil, output, nil
}

// handleGetFileContents handles the get_file_contents tool invocation.
func (s *Server) handleGetFileContents(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetFileContentsInput,
) (*mcp.CallToolResult, GetFileContentsOutput, error) {
	content, err := s.ports.Document.FullContent(ctx, input.DocumentID)
	if err != nil {
		return nil, GetFileContentsOutput{}, err
	}

	return nil, GetFileContentsOutput{
		DocumentID: input.DocumentID,
		Content:    content,
	}, nil
}

// handleQueryTable handles the query_table tool invocation.
func (s *Server) handleQueryTable(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryTableInput,
) (*mcp.CallToolResult, QueryTableOutput, error) {
	pred := domain.TablePredicate{
		Columns: input.Columns,
		Limit:   input.Limit,
	}
	for _, f := range input.Filters {
		pred.Filters = append(pred.Filters, domain.Filter{
			Column: f.Column,
			Op:     domain.FilterOp(f.Op),
			Value:  f.Value,
		})
	}
	if input.Aggregate != nil {
		pred.Aggregate = &domain.Aggregate{
			Func:   domain.AggregateFunc(input.Aggregate.Func),
			Column: input.Aggregate.Column,
		}
	}

	result, err := s.ports.Table.QueryTable(ctx, input.DatasetID, pred)
	if err != nil {
		return nil, QueryTableOutput{}, err
	}

	output := QueryTableOutput{
		Aggregate: result.Aggregate,
		Count:     len(result.Rows),
		Truncated: result.Truncated,
	}
	for _, row := range result.Rows {
		output.Rows = append(output.Rows, row.Data)
	}

	return nil, output, nil
}

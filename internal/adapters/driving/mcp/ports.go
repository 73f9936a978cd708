package mcp

import (
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers hybrid retrieval queries.
	Query driving.QueryService

	// Document exposes document reads and deletion.
	Document driving.DocumentService

	// Table runs structured queries over ingested datasets.
	Table driving.TableService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	if p.Table == nil {
		return ErrMissingTableService
	}
	return nil
}

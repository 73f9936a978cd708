// Package mcp provides an MCP (Model Context Protocol) server adapter
// for Quarry. It exposes hybrid search, document access and structured
// table queries to AI assistants.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("mcp: document service is required")

// ErrMissingTableService is returned when the table service is not provided.
var ErrMissingTableService = errors.New("mcp: table service is required")

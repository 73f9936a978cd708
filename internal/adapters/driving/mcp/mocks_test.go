package mcp

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.QueryOptions
}

func (m *mockQueryService) Query(
	_ context.Context,
	_ string,
	opts domain.QueryOptions,
) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	content   string
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) FullContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockTableService is a mock implementation of driving.TableService.
type mockTableService struct {
	schemas  []driving.DatasetSchema
	result   *domain.TableResult
	err      error
	lastPred domain.TablePredicate
	lastID   string
}

func (m *mockTableService) ListSchemas(_ context.Context) ([]driving.DatasetSchema, error) {
	return m.schemas, m.err
}

func (m *mockTableService) QueryTable(
	_ context.Context,
	datasetID string,
	pred domain.TablePredicate,
) (*domain.TableResult, error) {
	m.lastID = datasetID
	m.lastPred = pred
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// testPorts returns a fully-populated Ports with the given overrides.
func testPorts(query *mockQueryService, doc *mockDocumentService, table *mockTableService) *Ports {
	if query == nil {
		query = &mockQueryService{}
	}
	if doc == nil {
		doc = &mockDocumentService{}
	}
	if table == nil {
		table = &mockTableService{result: &domain.TableResult{}}
	}
	return &Ports{Query: query, Document: doc, Table: table}
}

package cli

import (
	"bytes"
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report   *driving.IngestReport
	err      error
	ingested []string
}

func (m *mockIngestService) Run(_ context.Context) (*driving.IngestReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func (m *mockIngestService) IngestOne(_ context.Context, desc domain.SourceDescriptor) error {
	m.ingested = append(m.ingested, desc.ID)
	return m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.QueryOptions
}

func (m *mockQueryService) Query(_ context.Context, _ string, opts domain.QueryOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	content   string
	err       error
	deleted   []string
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) FullContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockTableService is a mock implementation of driving.TableService.
type mockTableService struct {
	schemas  []driving.DatasetSchema
	result   *domain.TableResult
	err      error
	lastPred domain.TablePredicate
}

func (m *mockTableService) ListSchemas(_ context.Context) ([]driving.DatasetSchema, error) {
	return m.schemas, m.err
}

func (m *mockTableService) QueryTable(_ context.Context, _ string, pred domain.TablePredicate) (*domain.TableResult, error) {
	m.lastPred = pred
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// setupTestServices installs mock services and returns a cleanup
// function restoring the previous ones.
func setupTestServices() func() {
	prevIngest := ingestService
	prevQuery := queryService
	prevDoc := documentService
	prevTable := tableService

	ingestService = &mockIngestService{report: &driving.IngestReport{RunID: "test-run"}}
	queryService = &mockQueryService{}
	documentService = &mockDocumentService{}
	tableService = &mockTableService{result: &domain.TableResult{}}

	return func() {
		ingestService = prevIngest
		queryService = prevQuery
		documentService = prevDoc
		tableService = prevTable
	}
}

// executeCommand runs the root command with args and captures output.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

func resetTableFlags() {
	tableColumns = nil
	tableFilters = nil
	tableAggregate = ""
	tableLimit = 0
	tableJSON = false
}

func TestTableCmd_Metadata(t *testing.T) {
	assert.Equal(t, "table", tableCmd.Use)

	subcommands := make(map[string]bool)
	for _, sub := range tableCmd.Commands() {
		subcommands[sub.Name()] = true
	}
	assert.True(t, subcommands["schemas"])
	assert.True(t, subcommands["query"])

	for _, name := range []string{"columns", "filter", "aggregate", "limit", "json"} {
		assert.NotNil(t, tableQueryCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestTableSchemasCmd_PrintsSchemas(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	tableService = &mockTableService{schemas: []driving.DatasetSchema{
		{
			DatasetID: "sales.csv",
			Title:     "Sales",
			Schema: []domain.Column{
				{Name: "region", Type: domain.ColumnText},
				{Name: "revenue", Type: domain.ColumnNumber},
			},
		},
	}}

	out, err := executeCommand("table", "schemas")
	require.NoError(t, err)

	assert.Contains(t, out, "Sales")
	assert.Contains(t, out, "sales.csv")
	assert.Contains(t, out, "region")
	assert.Contains(t, out, "number")
}

func TestTableSchemasCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	out, err := executeCommand("table", "schemas")
	require.NoError(t, err)
	assert.Contains(t, out, "No datasets ingested yet")
}

func TestTableQueryCmd_TranslatesFlags(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	mock := &mockTableService{result: &domain.TableResult{}}
	tableService = mock

	_, err := executeCommand("table", "query", "sales.csv",
		"--filter", "region:eq:north",
		"--filter", "reported:gte:2026-01-01T00:00:00Z",
		"--columns", "region,revenue",
		"--limit", "5",
	)
	require.NoError(t, err)

	require.Len(t, mock.lastPred.Filters, 2)
	assert.Equal(t, domain.Filter{Column: "region", Op: domain.OpEq, Value: "north"}, mock.lastPred.Filters[0])
	// Values keep their colons intact, which RFC 3339 dates need.
	assert.Equal(t, domain.Filter{Column: "reported", Op: domain.OpGte, Value: "2026-01-01T00:00:00Z"}, mock.lastPred.Filters[1])
	assert.Equal(t, []string{"region", "revenue"}, mock.lastPred.Columns)
	assert.Equal(t, 5, mock.lastPred.Limit)
}

func TestTableQueryCmd_PrintsRows(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	tableService = &mockTableService{result: &domain.TableResult{
		Rows: []domain.StructuredRow{
			{Data: map[string]any{"region": "north", "revenue": 100.0}},
			{Data: map[string]any{"region": "south", "revenue": 75.0}},
		},
	}}

	out, err := executeCommand("table", "query", "sales.csv")
	require.NoError(t, err)

	assert.Contains(t, out, `"region":"north"`)
	assert.Contains(t, out, `"region":"south"`)
	assert.NotContains(t, out, "truncated")
}

func TestTableQueryCmd_MarksTruncation(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	tableService = &mockTableService{result: &domain.TableResult{
		Rows:      []domain.StructuredRow{{Data: map[string]any{"region": "north"}}},
		Truncated: true,
	}}

	out, err := executeCommand("table", "query", "sales.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "(result truncated)")
}

func TestTableQueryCmd_PrintsAggregate(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	mock := &mockTableService{result: &domain.TableResult{Aggregate: 425.0}}
	tableService = mock

	out, err := executeCommand("table", "query", "sales.csv", "--aggregate", "sum:revenue")
	require.NoError(t, err)

	require.NotNil(t, mock.lastPred.Aggregate)
	assert.Equal(t, domain.AggSum, mock.lastPred.Aggregate.Func)
	assert.Equal(t, "revenue", mock.lastPred.Aggregate.Column)
	assert.Contains(t, out, "425")
}

func TestTableQueryCmd_AggregateWithoutColumn(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	mock := &mockTableService{result: &domain.TableResult{Aggregate: 4}}
	tableService = mock

	_, err := executeCommand("table", "query", "sales.csv", "--aggregate", "count")
	require.NoError(t, err)

	require.NotNil(t, mock.lastPred.Aggregate)
	assert.Equal(t, domain.AggCount, mock.lastPred.Aggregate.Func)
	assert.Empty(t, mock.lastPred.Aggregate.Column)
}

func TestTableQueryCmd_RejectsMalformedFilter(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	_, err := executeCommand("table", "query", "sales.csv", "--filter", "region=north")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestTableQueryCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetTableFlags()

	tableService = &mockTableService{err: domain.ErrUnknownDataset}

	_, err := executeCommand("table", "query", "missing.csv")
	require.Error(t, err)
}

package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

func TestSearchCmd_Metadata(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
	assert.NotEmpty(t, searchCmd.Short)

	for _, name := range []string{"top-k", "full-text-weight", "semantic-weight", "rrf-k", "json"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	queryService = &mockQueryService{results: []domain.SearchResult{
		{
			ChunkID: 1,
			Content: "The secret to a great apple pie is tart apples.",
			Score:   0.032,
			Metadata: map[string]any{
				domain.MetaDocumentID: "recipes.md",
				domain.MetaChunkIndex: 0,
			},
		},
	}}

	out, err := executeCommand("search", "apple pie")
	require.NoError(t, err)

	assert.Contains(t, out, "recipes.md")
	assert.Contains(t, out, "apple pie")
}

func TestSearchCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("search", "nothing matches this")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestSearchCmd_PassesOptions(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	mock := &mockQueryService{}
	queryService = mock

	_, err := executeCommand("search", "apples",
		"--top-k", "3",
		"--full-text-weight", "0",
		"--semantic-weight", "2.5",
		"--rrf-k", "25",
	)
	require.NoError(t, err)

	assert.Equal(t, 3, mock.lastOpts.TopK)
	assert.Equal(t, 0.0, mock.lastOpts.FullTextWeight)
	assert.Equal(t, 2.5, mock.lastOpts.SemanticWeight)
	assert.Equal(t, 25, mock.lastOpts.RRFK)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	queryService = &mockQueryService{results: []domain.SearchResult{
		{ChunkID: 7, Content: "chunk body", Score: 0.5},
	}}

	out, err := executeCommand("search", "chunk", "--json")
	require.NoError(t, err)

	assert.Contains(t, out, `"ChunkID": 7`)
	assert.Contains(t, out, `"Content": "chunk body"`)
	searchJSON = false
}

func TestSearchCmd_TruncatesLongSnippets(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	queryService = &mockQueryService{results: []domain.SearchResult{
		{ChunkID: 1, Content: strings.Repeat("x", 500), Score: 1},
	}}

	out, err := executeCommand("search", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 201))
}

func TestSearchCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	queryService = &mockQueryService{err: errors.New("store offline")}

	_, err := executeCommand("search", "apples")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}

func TestSearchCmd_RequiresQueryArgument(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("search")
	require.Error(t, err)
}

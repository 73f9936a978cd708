package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	searchTopK     int
	searchFTWeight float64
	searchSemW     float64
	searchRRFK     int
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Performs hybrid search across all ingested documents, fusing a
full-text (BM25) ranking and a semantic (embedding) ranking with
reciprocal rank fusion. Setting a weight to zero disables that ranking
entirely.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", domain.DefaultTopK, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchFTWeight, "full-text-weight", 1.0, "weight of the full-text ranking (0 disables)")
	searchCmd.Flags().Float64Var(&searchSemW, "semantic-weight", 1.0, "weight of the semantic ranking (0 disables)")
	searchCmd.Flags().IntVar(&searchRRFK, "rrf-k", domain.DefaultRRFK, "reciprocal rank fusion constant")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if queryService == nil {
		return errors.New("query service not configured")
	}

	opts := domain.QueryOptions{
		TopK:           searchTopK,
		FullTextWeight: searchFTWeight,
		SemanticWeight: searchSemW,
		RRFK:           searchRRFK,
	}

	results, err := queryService.Query(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		docID, _ := results[i].Metadata[domain.MetaDocumentID].(string)

		snippet := results[i].Content
		if len([]rune(snippet)) > 200 {
			snippet = string([]rune(snippet)[:200]) + "..."
		}

		cmd.Printf("  [%d] %s (%.4f)\n", i+1, docID, results[i].Score)
		cmd.Printf("      %s\n", snippet)
		cmd.Println()
	}

	return nil
}

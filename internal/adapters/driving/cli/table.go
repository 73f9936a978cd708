package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	tableColumns   []string
	tableFilters   []string
	tableAggregate string
	tableLimit     int
	tableJSON      bool
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Query structured datasets",
}

var tableSchemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List dataset schemas",
	RunE:  runTableSchemas,
}

var tableQueryCmd = &cobra.Command{
	Use:   "query [dataset-id]",
	Short: "Run a read-only query over a dataset",
	Long: `Runs a filtered, optionally aggregated query over one dataset's rows.

Filters take the form column:op:value, where op is one of eq, ne, lt,
lte, gt, gte or contains. Multiple filters are conjunctive. An
aggregate takes the form func or func:column, with func one of count,
sum, avg, min or max.

Examples:
  quarry table query sales --filter "region:eq:north"
  quarry table query sales --filter "revenue:gte:100" --columns region,revenue
  quarry table query sales --aggregate sum:revenue`,
	Args: cobra.ExactArgs(1),
	RunE: runTableQuery,
}

func init() {
	tableQueryCmd.Flags().StringSliceVar(&tableColumns, "columns", nil, "columns to return (default all)")
	tableQueryCmd.Flags().StringArrayVar(&tableFilters, "filter", nil, "row filter as column:op:value (repeatable)")
	tableQueryCmd.Flags().StringVar(&tableAggregate, "aggregate", "", "aggregate as func or func:column")
	tableQueryCmd.Flags().IntVar(&tableLimit, "limit", 0, "maximum rows to return (0 = configured cap)")
	tableQueryCmd.Flags().BoolVar(&tableJSON, "json", false, "output as JSON")

	tableCmd.AddCommand(tableSchemasCmd)
	tableCmd.AddCommand(tableQueryCmd)
	rootCmd.AddCommand(tableCmd)
}

func runTableSchemas(cmd *cobra.Command, _ []string) error {
	if tableService == nil {
		return errors.New("table service not configured")
	}

	schemas, err := tableService.ListSchemas(cmd.Context())
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}

	if len(schemas) == 0 {
		cmd.Println("No datasets ingested yet.")
		return nil
	}

	for _, s := range schemas {
		title := s.Title
		if title == "" {
			title = s.DatasetID
		}
		cmd.Printf("  %s (id: %s)\n", title, s.DatasetID)
		for _, col := range s.Schema {
			cmd.Printf("    %-20s %s\n", col.Name, col.Type)
		}
		cmd.Println()
	}
	return nil
}

func runTableQuery(cmd *cobra.Command, args []string) error {
	if tableService == nil {
		return errors.New("table service not configured")
	}

	pred, err := buildPredicate()
	if err != nil {
		return err
	}

	result, err := tableService.QueryTable(cmd.Context(), args[0], *pred)
	if err != nil {
		return fmt.Errorf("table query: %w", err)
	}

	if tableJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if pred.Aggregate != nil {
		cmd.Printf("%v\n", result.Aggregate)
		return nil
	}

	for _, row := range result.Rows {
		data, err := json.Marshal(row.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		cmd.Println(string(data))
	}
	if result.Truncated {
		cmd.Println("(result truncated)")
	}
	return nil
}

// buildPredicate translates the flag values into a table predicate.
func buildPredicate() (*domain.TablePredicate, error) {
	pred := &domain.TablePredicate{
		Columns: tableColumns,
		Limit:   tableLimit,
	}

	for _, raw := range tableFilters {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid filter %q: want column:op:value", raw)
		}
		pred.Filters = append(pred.Filters, domain.Filter{
			Column: parts[0],
			Op:     domain.FilterOp(parts[1]),
			Value:  parts[2],
		})
	}

	if tableAggregate != "" {
		parts := strings.SplitN(tableAggregate, ":", 2)
		agg := &domain.Aggregate{Func: domain.AggregateFunc(parts[0])}
		if len(parts) == 2 {
			agg.Column = parts[1]
		}
		pred.Aggregate = agg
	}

	return pred, nil
}

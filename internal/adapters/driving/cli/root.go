// Package cli implements the quarry command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// version is set from the composition root at startup.
var version = "dev"

// Services injected by the composition root.
var (
	ingestService   driving.IngestService
	queryService    driving.QueryService
	documentService driving.DocumentService
	tableService    driving.TableService
	sourceProvider  driven.SourceProvider
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Local hybrid retrieval engine",
	Long: `Quarry ingests local documents and datasets into a searchable store.
Text files are chunked and embedded for hybrid full-text and semantic
search; CSV files become typed datasets that can be queried and
aggregated. An MCP server exposes everything to AI assistants.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services bundles everything the commands need.
type Services struct {
	Ingest   driving.IngestService
	Query    driving.QueryService
	Document driving.DocumentService
	Table    driving.TableService
	Provider driven.SourceProvider
}

// SetServices injects the service implementations. Called once from the
// composition root before Execute.
func SetServices(s Services) {
	ingestService = s.Ingest
	queryService = s.Query
	documentService = s.Document
	tableService = s.Table
	sourceProvider = s.Provider
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/logger"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest new and changed sources",
	Long: `Scans the configured source paths and ingests every new or changed
document. Unchanged sources are detected by content hash and skipped.
With --watch, keeps running and ingests sources as they change on disk.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "keep watching for changes after the initial sync")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := cmd.Context()

	cmd.Println("Ingesting sources...")
	report, err := ingestService.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Run %s: %d ingested, %d unchanged, %d failed.\n",
		report.RunID, report.Ingested, report.Unchanged, report.Failed)

	if !syncWatch {
		return nil
	}

	if sourceProvider == nil {
		return errors.New("source provider not configured")
	}

	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	descCh, errCh := sourceProvider.Watch(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case desc, ok := <-descCh:
			if !ok {
				return nil
			}
			if err := ingestService.IngestOne(ctx, desc); err != nil {
				// One bad file must not stop the watch loop.
				logger.Warn("Ingest failed for %s: %v", desc.ID, err)
				cmd.Printf("Failed: %s (%v)\n", desc.ID, err)
				continue
			}
			cmd.Printf("Ingested: %s\n", desc.ID)

		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			if err != nil {
				return fmt.Errorf("watch failed: %w", err)
			}
		}
	}
}

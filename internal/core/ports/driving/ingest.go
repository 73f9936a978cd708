package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// RunID identifies the run in log output.
	RunID string

	// Ingested counts documents whose content changed and were replaced.
	Ingested int

	// Unchanged counts documents skipped by the watermark check.
	Unchanged int

	// Failed counts documents that errored without stopping the run.
	Failed int
}

// IngestService coordinates detection and ingestion of changed sources.
type IngestService interface {
	// Run detects changed sources and ingests them. Documents fail
	// independently; only a permanent provider error aborts the run.
	Run(ctx context.Context) (*IngestReport, error)

	// IngestOne processes a single already-detected source descriptor.
	// Exposed for watch mode, where descriptors arrive one at a time.
	IngestOne(ctx context.Context, desc domain.SourceDescriptor) error
}

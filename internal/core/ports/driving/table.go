package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// DatasetSchema pairs a dataset with its column descriptors.
type DatasetSchema struct {
	DatasetID string
	Title     string
	Schema    domain.SchemaDescriptor
}

// TableService runs schema-validated read queries over structured rows.
type TableService interface {
	// ListSchemas returns the column descriptors of every dataset.
	ListSchemas(ctx context.Context) ([]DatasetSchema, error)

	// QueryTable executes a read-only, bounded scan/filter/aggregate
	// over one dataset's rows.
	QueryTable(ctx context.Context, datasetID string, pred domain.TablePredicate) (*domain.TableResult, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// SourceProvider delivers source descriptors from the outside world.
// The engine never trusts the provider's own change tracking: whether a
// descriptor is actually new is decided by comparing content hashes
// against the persisted watermark.
type SourceProvider interface {
	// Detect returns descriptors for all sources the provider can
	// currently see.
	Detect(ctx context.Context) ([]domain.SourceDescriptor, error)

	// Watch streams descriptors for sources as they change, until the
	// context is cancelled. The error channel carries at most one error
	// and both channels are closed on return.
	Watch(ctx context.Context) (<-chan domain.SourceDescriptor, <-chan error)

	// Close releases resources.
	Close() error
}

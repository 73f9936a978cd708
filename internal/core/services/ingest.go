package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/custodia-labs/quarry/internal/chunker"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure IngestCoordinator implements the interface.
var _ driving.IngestService = (*IngestCoordinator)(nil)

// DefaultIngestWorkers bounds concurrent document ingestion when no
// worker count is configured.
const DefaultIngestWorkers = 4

// IngestCoordinator drives the ingestion pipeline: it detects sources,
// skips unchanged ones by content hash, chunks and embeds the rest, and
// replaces each document in the store atomically.
type IngestCoordinator struct {
	provider driven.SourceProvider
	store    driven.DocumentStore
	embedder driven.EmbeddingService
	splitter *chunker.Splitter
	workers  int

	// locks serialises ingestion per document so a slow re-ingest can
	// never interleave with a concurrent one for the same source.
	// Entries are reference-counted and pruned on release, so a
	// long-lived watch over a churning tree does not grow the map.
	mu    sync.Mutex
	locks map[string]*docLock

	// running guards against overlapping full runs.
	running atomic.Bool
}

// NewIngestCoordinator creates an ingest coordinator. workers bounds
// concurrent document ingestion; zero or negative uses the default.
func NewIngestCoordinator(
	provider driven.SourceProvider,
	store driven.DocumentStore,
	embedder driven.EmbeddingService,
	splitter *chunker.Splitter,
	workers int,
) *IngestCoordinator {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	return &IngestCoordinator{
		provider: provider,
		store:    store,
		embedder: embedder,
		splitter: splitter,
		workers:  workers,
		locks:    make(map[string]*docLock),
	}
}

// Run detects all sources and ingests them through a bounded worker
// pool. A failure in one document never stops the others; a permanent
// provider failure (invalid credentials) aborts the whole run since
// every remaining document would fail the same way.
func (c *IngestCoordinator) Run(ctx context.Context) (*driving.IngestReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, domain.ErrIngestInProgress
	}
	defer c.running.Store(false)

	report := &driving.IngestReport{RunID: uuid.New().String()}

	logger.Section("Ingest Run " + report.RunID)

	descriptors, err := c.provider.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect sources: %w", err)
	}
	logger.Info("Detected %d sources", len(descriptors))

	// Cancel remaining work on a permanent provider failure.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		counterMu sync.Mutex
		permanent error
	)
	sem := make(chan struct{}, c.workers)

	for i := range descriptors {
		desc := descriptors[i]

		select {
		case <-runCtx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				ingested, err := c.ingest(runCtx, desc)

				counterMu.Lock()
				defer counterMu.Unlock()
				switch {
				case err == nil && ingested:
					report.Ingested++
				case err == nil:
					report.Unchanged++
				case errors.Is(err, domain.ErrProviderPermanent):
					report.Failed++
					if permanent == nil {
						permanent = err
					}
					cancel()
				default:
					report.Failed++
					logger.Warn("Ingest failed for %s: %v", desc.ID, err)
				}
			}()
		}
		if runCtx.Err() != nil {
			break
		}
	}

	wg.Wait()

	if permanent != nil {
		logger.Warn("Ingest run aborted: %v", permanent)
		return report, fmt.Errorf("ingest aborted: %w", permanent)
	}
	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	logger.Info("Ingest run complete: %d ingested, %d unchanged, %d failed",
		report.Ingested, report.Unchanged, report.Failed)
	return report, nil
}

// IngestOne ingests a single source descriptor. Unchanged sources are
// a silent no-op.
func (c *IngestCoordinator) IngestOne(ctx context.Context, desc domain.SourceDescriptor) error {
	_, err := c.ingest(ctx, desc)
	return err
}

// ingest does the actual work and reports whether anything was written.
// Readers are never blocked: all extraction and embedding work happens
// before the per-document lock is taken for the final atomic replace.
func (c *IngestCoordinator) ingest(ctx context.Context, desc domain.SourceDescriptor) (bool, error) {
	hash := desc.ContentHash()

	watermark, err := c.store.Watermark(ctx, desc.ID)
	if err != nil {
		return false, fmt.Errorf("read watermark for %s: %w", desc.ID, err)
	}
	if watermark == hash {
		logger.Debug("Source %s unchanged, skipping", desc.ID)
		return false, nil
	}

	doc := &domain.Document{
		ID:    desc.ID,
		Title: desc.Title,
		URL:   desc.URL,
	}

	var (
		chunks []domain.Chunk
		rows   []domain.StructuredRow
	)

	if desc.IsTabular() {
		schema, err := inferSchema(desc.Rows)
		if err != nil {
			return false, fmt.Errorf("infer schema for %s: %w", desc.ID, err)
		}
		rows, err = parseRows(schema, desc.Rows)
		if err != nil {
			return false, fmt.Errorf("parse rows for %s: %w", desc.ID, err)
		}
		doc.Schema = schema
		logger.Debug("Source %s: %d typed rows, %d columns", desc.ID, len(rows), len(schema))
	} else {
		chunks, err = c.buildChunks(ctx, desc)
		if err != nil {
			return false, err
		}
		logger.Debug("Source %s: %d chunks", desc.ID, len(chunks))
	}

	// Only the final replace is serialised per document.
	lock := c.lockDocument(desc.ID)
	defer c.unlockDocument(desc.ID, lock)

	if err := c.store.Replace(ctx, doc, chunks, rows, hash); err != nil {
		return false, fmt.Errorf("replace document %s: %w", desc.ID, err)
	}

	logger.Info("Ingested %s (%q)", desc.ID, desc.Title)
	return true, nil
}

// buildChunks splits a textual source and embeds all chunks in one
// batch. The batch is all-or-nothing: a partial embedding failure
// fails the document rather than storing half-embedded chunks.
func (c *IngestCoordinator) buildChunks(ctx context.Context, desc domain.SourceDescriptor) ([]domain.Chunk, error) {
	pieces := c.splitter.Split(desc.Content)
	if len(pieces) == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %s: %w", domain.ErrEmbeddingUnavailable, desc.ID, err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("%w: embed %s: got %d vectors for %d chunks",
			domain.ErrEmbeddingUnavailable, desc.ID, len(vectors), len(pieces))
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = domain.Chunk{
			Content:   content,
			Position:  i,
			Embedding: vectors[i],
		}
	}
	return chunks, nil
}

// docLock is a per-document mutex with a reference count so the
// coordinator can prune entries once the last holder releases them.
type docLock struct {
	mu   sync.Mutex
	refs int
}

// lockDocument acquires the lock guarding a document, creating it on
// first use.
func (c *IngestCoordinator) lockDocument(id string) *docLock {
	c.mu.Lock()
	lock, ok := c.locks[id]
	if !ok {
		lock = &docLock{}
		c.locks[id] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockDocument releases the lock and removes the map entry when no
// other ingest holds or waits on it.
func (c *IngestCoordinator) unlockDocument(id string, lock *docLock) {
	lock.mu.Unlock()

	c.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(c.locks, id)
	}
	c.mu.Unlock()
}

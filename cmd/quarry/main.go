// Command quarry is the hybrid retrieval engine CLI.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/quarry/internal/adapters/driven/config/file"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/quarry/internal/adapters/driven/source/filesystem"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/quarry/internal/adapters/driving/cli"
	"github.com/custodia-labs/quarry/internal/chunker"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.Load(os.Getenv("QUARRY_CONFIG"))
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	roots := cfg.Sources.Paths
	if len(roots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		roots = []string{cwd}
	}
	provider := filesystem.New(roots...)

	splitter := chunker.New(
		chunker.WithTargetSize(cfg.Ingest.ChunkSize),
		chunker.WithOverlap(cfg.Ingest.ChunkOverlap),
	)

	cli.SetServices(cli.Services{
		Ingest:   services.NewIngestCoordinator(provider, store, embedder, splitter, cfg.Ingest.Workers),
		Query:    services.NewQueryEngine(store, embedder, services.WithPoolSize(cfg.Search.PoolSize)),
		Document: services.NewDocumentManager(store),
		Table:    services.NewTableExecutor(store, cfg.Table.RowCap),
		Provider: provider,
	})
	cli.SetVersion(version)

	return cli.Execute()
}

// buildEmbedder constructs the configured embedding provider, wrapped
// with retry and rate limiting.
func buildEmbedder(cfg *file.Config) (driven.EmbeddingService, error) {
	var inner driven.EmbeddingService

	switch cfg.Embedding.Provider {
	case "", "ollama":
		inner = ollama.NewEmbeddingService(ollama.Config{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})

	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			return nil, err
		}
		inner = svc

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	return embedding.NewRetryingService(inner, embedding.RetryConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}), nil
}

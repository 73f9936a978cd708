// Package file loads and saves the engine configuration as a TOML file
// in the quarry config directory.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200
	DefaultIngestWorkers = 4
	DefaultTableRowCap   = 500
)

// Config is the engine configuration, persisted as TOML.
type Config struct {
	// DataDir is where the SQLite database lives. Empty means
	// ~/.quarry/data.
	DataDir string `toml:"data_dir"`

	Sources   SourcesConfig   `toml:"sources"`
	Ingest    IngestConfig    `toml:"ingest"`
	Search    SearchConfig    `toml:"search"`
	Table     TableConfig     `toml:"table"`
	Embedding EmbeddingConfig `toml:"embedding"`
}

// SourcesConfig configures where documents come from.
type SourcesConfig struct {
	// Paths are the filesystem roots scanned for documents.
	Paths []string `toml:"paths"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// ChunkSize is the target chunk length in runes.
	ChunkSize int `toml:"chunk_size"`

	// ChunkOverlap is the rune overlap between adjacent chunks.
	ChunkOverlap int `toml:"chunk_overlap"`

	// Workers bounds concurrent document ingestion.
	Workers int `toml:"workers"`
}

// SearchConfig configures hybrid search defaults.
type SearchConfig struct {
	// PoolSize is the per-list candidate pool before fusion. Zero uses
	// the engine default.
	PoolSize int `toml:"pool_size"`
}

// TableConfig configures the structured query executor.
type TableConfig struct {
	// RowCap bounds the rows scanned per table query.
	RowCap int `toml:"row_cap"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider's default embedding model.
	Model string `toml:"model"`

	// APIKey authenticates against hosted providers. The OPENAI_API_KEY
	// environment variable takes precedence when set.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// RequestsPerSecond limits outgoing provider calls.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			Workers:      DefaultIngestWorkers,
		},
		Table: TableConfig{
			RowCap: DefaultTableRowCap,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
		},
	}
}

// DefaultPath returns the default config file location,
// ~/.quarry/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quarry", "config.toml"), nil
}

// Load reads the config file at path. A missing file yields the
// defaults; a present file is merged over them, so omitted keys keep
// their default values. If path is empty the default location is used.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Environment wins over the file for secrets.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}

	return cfg, nil
}

// Save writes the config to path with restricted permissions, creating
// the parent directory if needed. If path is empty the default location
// is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Config may hold an API key
	return os.WriteFile(path, data, 0o600)
}

// Package filesystem provides a source provider that reads documents
// from local directories. Plain text files become textual sources; CSV
// files become tabular sources with the header row first.
package filesystem

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.SourceProvider = (*Provider)(nil)

// textExtensions are the file types treated as textual sources.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".rst":  true,
	".html": true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".log":  true,
}

// Provider walks configured root directories for ingestable files.
type Provider struct {
	roots   []string
	watcher *fsnotify.Watcher
}

// New creates a filesystem provider over the given root directories.
func New(roots ...string) *Provider {
	return &Provider{roots: roots}
}

// Detect walks all roots and returns a descriptor per ingestable file.
// Unreadable files are skipped with a log line rather than failing the
// whole walk.
func (p *Provider) Detect(ctx context.Context) ([]domain.SourceDescriptor, error) {
	var descriptors []domain.SourceDescriptor

	for _, root := range p.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				// Skip hidden directories (.git, .cache, etc.)
				if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !ingestable(path) {
				return nil
			}

			desc, err := p.describe(path)
			if err != nil {
				logger.Warn("Skipping %s: %v", path, err)
				return nil
			}
			descriptors = append(descriptors, *desc)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return descriptors, nil
}

// Watch streams a descriptor whenever an ingestable file under a root is
// created or written. Events for the same file are delivered as they
// arrive; de-duplication happens downstream via content hashing.
func (p *Provider) Watch(ctx context.Context) (<-chan domain.SourceDescriptor, <-chan error) {
	descCh := make(chan domain.SourceDescriptor)
	errCh := make(chan error, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errCh <- fmt.Errorf("create watcher: %w", err)
		close(descCh)
		close(errCh)
		return descCh, errCh
	}
	p.watcher = watcher

	// Watch every directory under each root; fsnotify is not recursive.
	for _, root := range p.roots {
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if walkErr != nil {
			errCh <- fmt.Errorf("watch %s: %w", root, walkErr)
			watcher.Close()
			close(descCh)
			close(errCh)
			return descCh, errCh
		}
	}

	go func() {
		defer close(descCh)
		defer close(errCh)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}

				// New directories need to be added to the watch set.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("Cannot watch %s: %v", event.Name, err)
					}
					continue
				}
				if !ingestable(event.Name) {
					continue
				}

				desc, err := p.describe(event.Name)
				if err != nil {
					logger.Warn("Skipping %s: %v", event.Name, err)
					continue
				}

				select {
				case descCh <- *desc:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return descCh, errCh
}

// Close releases the watcher, if any.
func (p *Provider) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// describe reads a file into a source descriptor. CSV files are parsed
// into rows; everything else is read as text.
func (p *Provider) describe(path string) (*domain.SourceDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	desc := &domain.SourceDescriptor{
		ID:           abs,
		Title:        filepath.Base(path),
		URL:          "file://" + abs,
		LastModified: info.ModTime(),
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rows, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		desc.Rows = rows
		return desc, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	desc.Content = string(content)
	return desc, nil
}

// readCSV parses a CSV file into records, header row first.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv %s: %w", domain.ErrExtraction, path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: csv %s has no header row", domain.ErrExtraction, path)
	}
	return rows, nil
}

// ingestable reports whether the file type is one the provider handles.
// Hidden files are never ingested.
func ingestable(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || textExtensions[ext]
}

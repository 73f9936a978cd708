package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// fakeStore is an in-memory DocumentStore for service tests.
type fakeStore struct {
	mu          sync.Mutex
	docs        map[string]domain.Document
	chunks      map[int64]domain.Chunk
	rows        map[string][]domain.StructuredRow
	watermarks  map[string]string
	nextChunkID int64

	// lexical, when set, overrides the default substring matcher.
	lexical func(query string, limit int) []driven.LexicalHit

	replaceCalls int
	replaceErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:       make(map[string]domain.Document),
		chunks:     make(map[int64]domain.Chunk),
		rows:       make(map[string][]domain.StructuredRow),
		watermarks: make(map[string]string),
	}
}

func (s *fakeStore) Replace(_ context.Context, doc *domain.Document, chunks []domain.Chunk, rows []domain.StructuredRow, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}

	for id, c := range s.chunks {
		if c.DocumentID == doc.ID {
			delete(s.chunks, id)
		}
	}
	for i := range chunks {
		s.nextChunkID++
		chunks[i].ID = s.nextChunkID
		chunks[i].DocumentID = doc.ID
		s.chunks[chunks[i].ID] = chunks[i]
	}

	s.docs[doc.ID] = *doc
	s.rows[doc.ID] = append([]domain.StructuredRow(nil), rows...)
	s.watermarks[doc.ID] = contentHash
	return nil
}

func (s *fakeStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &doc, nil
}

func (s *fakeStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetFullContent(_ context.Context, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[documentID]; !ok {
		return "", fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}

	var parts []domain.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			parts = append(parts, c)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Position < parts[j].Position })

	contents := make([]string, len(parts))
	for i, c := range parts {
		contents[i] = c.Content
	}
	return strings.Join(contents, "\n\n"), nil
}

func (s *fakeStore) GetChunks(_ context.Context, ids []int64) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Chunk
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.rows, id)
	delete(s.watermarks, id)
	for cid, c := range s.chunks {
		if c.DocumentID == id {
			delete(s.chunks, cid)
		}
	}
	return nil
}

func (s *fakeStore) Watermark(_ context.Context, sourceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermarks[sourceID], nil
}

func (s *fakeStore) LexicalSearch(_ context.Context, query string, limit int) ([]driven.LexicalHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lexical != nil {
		return s.lexical(query, limit), nil
	}

	// Default: score is the number of query terms the chunk contains.
	terms := strings.Fields(strings.ToLower(query))
	var hits []driven.LexicalHit
	for id, c := range s.chunks {
		content := strings.ToLower(c.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(content, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, driven.LexicalHit{ChunkID: id, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *fakeStore) ChunkVectors(_ context.Context) ([]driven.ChunkVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []driven.ChunkVector
	for id, c := range s.chunks {
		if c.Embedding != nil {
			out = append(out, driven.ChunkVector{ChunkID: id, Embedding: c.Embedding})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out, nil
}

func (s *fakeStore) RowsForDataset(_ context.Context, datasetID string, limit int) ([]domain.StructuredRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[datasetID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]domain.StructuredRow(nil), rows...), nil
}

func (s *fakeStore) Close() error { return nil }

// fakeEmbedder returns deterministic vectors and counts calls.
type fakeEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	batchCalls int
	err        error

	// vectorFor, when set, maps text to a vector; otherwise a constant
	// unit vector is returned.
	vectorFor func(text string) []float32
}

func (f *fakeEmbedder) vector(text string) []float32 {
	if f.vectorFor != nil {
		return f.vectorFor(text)
	}
	return []float32{1, 0, 0}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return 3 }
func (f *fakeEmbedder) ModelName() string            { return "fake" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

// fakeProvider serves a fixed descriptor set.
type fakeProvider struct {
	descriptors []domain.SourceDescriptor
	detectErr   error
}

func (f *fakeProvider) Detect(_ context.Context) ([]domain.SourceDescriptor, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.descriptors, nil
}

func (f *fakeProvider) Watch(_ context.Context) (<-chan domain.SourceDescriptor, <-chan error) {
	descCh := make(chan domain.SourceDescriptor)
	errCh := make(chan error)
	close(descCh)
	close(errCh)
	return descCh, errCh
}

func (f *fakeProvider) Close() error { return nil }

package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure QueryEngine implements the interface.
var _ driving.QueryService = (*QueryEngine)(nil)

// QueryEngine answers hybrid queries by fusing a lexical and a semantic
// ranking with reciprocal rank fusion.
type QueryEngine struct {
	store    driven.DocumentStore
	embedder driven.EmbeddingService
	poolSize int
}

// QueryOption configures the query engine.
type QueryOption func(*QueryEngine)

// WithPoolSize sets the configured per-ranking candidate pool depth used
// when a query does not request one.
func WithPoolSize(n int) QueryOption {
	return func(e *QueryEngine) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

// NewQueryEngine creates a query engine.
func NewQueryEngine(store driven.DocumentStore, embedder driven.EmbeddingService, opts ...QueryOption) *QueryEngine {
	e := &QueryEngine{store: store, embedder: embedder}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rankedList is one ranking's ordered chunk IDs, best first.
type rankedList []int64

// Query runs the hybrid retrieval pipeline: both rankings to pool depth,
// RRF fusion, deterministic tie-breaks, then hydration of the top K.
func (e *QueryEngine) Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.SearchResult, error) {
	if opts.PoolSize == 0 && e.poolSize > 0 {
		opts.PoolSize = e.poolSize
	}
	opts, err := opts.Normalise()
	if err != nil {
		return nil, err
	}

	logger.Section("Query Execution")
	logger.Debug("Query: %q topK=%d poolSize=%d rrfK=%d weights=(ft=%g, sem=%g)",
		text, opts.TopK, opts.PoolSize, opts.RRFK, opts.FullTextWeight, opts.SemanticWeight)

	if strings.TrimSpace(text) == "" {
		return []domain.SearchResult{}, nil
	}

	// A zero weight disables the ranking entirely: no lexical query, no
	// embedding call.
	var lexical, semantic rankedList

	if opts.FullTextWeight > 0 {
		lexical, err = e.lexicalRanking(ctx, text, opts.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("lexical ranking: %w", err)
		}
		logger.Debug("Lexical ranking: %d candidates", len(lexical))
	}

	if opts.SemanticWeight > 0 {
		semantic, err = e.semanticRanking(ctx, text, opts.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("semantic ranking: %w", err)
		}
		logger.Debug("Semantic ranking: %d candidates", len(semantic))
	}

	fused := fuseRankings(opts,
		weightedList{ids: lexical, weight: opts.FullTextWeight},
		weightedList{ids: semantic, weight: opts.SemanticWeight},
	)
	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}
	logger.Debug("Fused: %d results", len(fused))

	return e.hydrate(ctx, fused)
}

// lexicalRanking returns chunk IDs ordered by full-text relevance.
func (e *QueryEngine) lexicalRanking(ctx context.Context, text string, limit int) (rankedList, error) {
	hits, err := e.store.LexicalSearch(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	ids := make(rankedList, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ChunkID
	}
	return ids, nil
}

// semanticRanking embeds the query and ranks all stored chunk vectors by
// cosine similarity, ties broken by ascending chunk ID.
func (e *QueryEngine) semanticRanking(ctx context.Context, text string, limit int) (rankedList, error) {
	query, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrEmbeddingUnavailable, err)
	}

	vectors, err := e.store.ChunkVectors(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    int64
		score float64
	}
	candidates := make([]scored, 0, len(vectors))
	for _, v := range vectors {
		candidates = append(candidates, scored{id: v.ChunkID, score: cosineSimilarity(query, v.Embedding)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make(rankedList, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

// weightedList pairs a ranking with its fusion weight.
type weightedList struct {
	ids    rankedList
	weight float64
}

// fusedHit is a chunk's fused score plus the tie-break bookkeeping.
type fusedHit struct {
	chunkID int64
	score   float64
	rankSum int
}

// fuseRankings merges the rankings with reciprocal rank fusion: each
// chunk scores the sum over lists of weight/(k + rank), ranks 1-based.
// Chunks absent from a list contribute nothing to the score from it; for
// the rank-sum tie-break an absent chunk counts as rank M+1. The final
// order is score descending, then rank sum ascending, then chunk ID
// ascending, which makes results fully deterministic.
func fuseRankings(opts domain.QueryOptions, lists ...weightedList) []fusedHit {
	absentRank := opts.PoolSize + 1

	hits := make(map[int64]*fusedHit)
	for _, list := range lists {
		if list.weight == 0 {
			continue
		}
		for i, id := range list.ids {
			rank := i + 1
			hit, ok := hits[id]
			if !ok {
				hit = &fusedHit{chunkID: id}
				hits[id] = hit
			}
			hit.score += list.weight / float64(opts.RRFK+rank)
		}
	}

	// Rank sums include lists the chunk is absent from.
	for _, hit := range hits {
		sum := 0
		for _, list := range lists {
			if list.weight == 0 {
				continue
			}
			rank := absentRank
			for i, id := range list.ids {
				if id == hit.chunkID {
					rank = i + 1
					break
				}
			}
			sum += rank
		}
		hit.rankSum = sum
	}

	fused := make([]fusedHit, 0, len(hits))
	for _, hit := range hits {
		fused = append(fused, *hit)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].rankSum != fused[j].rankSum {
			return fused[i].rankSum < fused[j].rankSum
		}
		return fused[i].chunkID < fused[j].chunkID
	})
	return fused
}

// hydrate loads chunk content for the fused hits. Chunks deleted between
// ranking and hydration are skipped.
func (e *QueryEngine) hydrate(ctx context.Context, fused []fusedHit) ([]domain.SearchResult, error) {
	ids := make([]int64, len(fused))
	scores := make(map[int64]float64, len(fused))
	for i, hit := range fused {
		ids[i] = hit.chunkID
		scores[hit.chunkID] = hit.score
	}

	chunks, err := e.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate chunks: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, domain.SearchResult{
			ChunkID:  chunk.ID,
			Content:  chunk.Content,
			Metadata: chunk.Metadata(),
			Score:    scores[chunk.ID],
		})
	}
	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or a zero vector yield 0 rather than an error so
// a single malformed embedding cannot fail a whole query.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ABOUTME: Hybrid retrieval service: FTS5 keyword, HNSW semantic, RRF fusion
// ABOUTME: Semantic legs degrade to empty results when no backend is available
package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// rrfK is the reciprocal rank fusion constant.
const rrfK = 60

// Mode selects the retrieval strategy
type Mode string

const (
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Result is one retrieval hit
type Result struct {
	EntityID   string            `json:"id"`
	EntityType models.EntityType `json:"type"`
	Name       string            `json:"name"`
	Snippet    string            `json:"snippet,omitempty"`
	Score      float64           `json:"score"`
}

// Options tune one search call
type Options struct {
	Mode   Mode
	Types  []models.EntityType
	Limit  int
	Offset int
	Rerank bool
}

// Service runs keyword, semantic, and hybrid searches
type Service struct {
	store   *storage.Storage
	backend embed.Backend
	indexes *indexSet
}

// NewService creates a search service
func NewService(store *storage.Storage, backend embed.Backend) *Service {
	return &Service{
		store:   store,
		backend: backend,
		indexes: newIndexSet(store),
	}
}

// Invalidate drops the cached ANN indexes, e.g. after a backfill
func (s *Service) Invalidate() {
	s.indexes.invalidate()
}

// Search runs a query in the requested mode
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if query == "" {
		return nil, narraerr.Validation("query must not be empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	types := opts.Types
	if len(types) == 0 {
		types = models.SearchableTypes()
	}

	var (
		results []Result
		err     error
	)
	switch opts.Mode {
	case ModeSemantic:
		var hits []scoredID
		hits, err = s.semantic(ctx, query, types, limit+opts.Offset)
		if err == nil {
			results, err = s.hydrate(paginate(hits, opts.Offset, limit))
		}
	case ModeHybrid:
		results, err = s.hybrid(ctx, query, types, limit, opts.Offset)
	default:
		results, err = s.keyword(query, types, limit, opts.Offset)
	}
	if err != nil || !opts.Rerank {
		return results, err
	}
	return s.rerank(ctx, query, results)
}

// rerank reorders results by model relevance scores over their composite
// texts. Without a rerank-capable backend the order is left unchanged.
func (s *Service) rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	if !s.backend.Capabilities().CanRerank || len(results) < 2 {
		return results, nil
	}

	docs := make([]string, len(results))
	for i, r := range results {
		doc := r.Name
		if r.EntityType.HasEmbeddings() {
			if _, composite, err := s.store.Embeddings.GetEmbedding(r.EntityType, r.EntityID); err == nil && composite != "" {
				doc = composite
			}
		}
		docs[i] = doc
	}

	scores, err := s.backend.Rerank(ctx, query, docs)
	if err != nil {
		if narraerr.Is(err, narraerr.KindModel) {
			return results, nil
		}
		return nil, err
	}

	reranked := make([]Result, len(results))
	copy(reranked, results)
	for i := range reranked {
		reranked[i].Score = scores[i]
	}
	sort.Slice(reranked, func(i, j int) bool {
		if reranked[i].Score != reranked[j].Score {
			return reranked[i].Score > reranked[j].Score
		}
		return reranked[i].EntityID < reranked[j].EntityID
	})
	return reranked, nil
}

func (s *Service) keyword(query string, types []models.EntityType, limit, offset int) ([]Result, error) {
	matches, err := s.store.Search.Search(query, types, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{
			EntityID:   m.EntityID,
			EntityType: m.EntityType,
			Name:       m.Title,
			Snippet:    m.Snippet,
			// FTS5 rank is negative; flip so larger is better
			Score: -m.Rank,
		})
	}
	return out, nil
}

// semantic returns ranked ids across the requested embeddable types.
// Without an encode-capable backend it returns no results and no error.
func (s *Service) semantic(ctx context.Context, query string, types []models.EntityType, k int) ([]scoredID, error) {
	if !s.backend.Capabilities().CanEncode {
		return nil, nil
	}

	vecs, err := s.backend.Encode(ctx, []string{query})
	if err != nil {
		if narraerr.Is(err, narraerr.KindModel) {
			return nil, nil
		}
		return nil, err
	}
	q := vecs[0]

	var all []scoredID
	for _, t := range types {
		if !t.HasEmbeddings() {
			continue
		}
		hits, err := s.indexes.search(t, q, k)
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
	}

	// Score across types with exact cosine so the merged order is global
	for i := range all {
		vec, _, err := s.store.Embeddings.GetEmbedding(all[i].entityType, all[i].id)
		if err != nil {
			return nil, err
		}
		all[i].score = float64(vmath.CosineSimilarity(q, vec))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id < all[j].id
	})
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

// hybrid fuses the keyword and semantic rankings with reciprocal rank
// fusion: each list contributes 1/(60+rank+1) per entity.
func (s *Service) hybrid(ctx context.Context, query string, types []models.EntityType, limit, offset int) ([]Result, error) {
	fetch := (limit + offset) * 2
	if fetch < 20 {
		fetch = 20
	}

	var (
		kw  []Result
		sem []scoredID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kw, err = s.keyword(query, types, fetch, 0)
		return err
	})
	g.Go(func() error {
		var err error
		sem, err = s.semantic(gctx, query, types, fetch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := map[string]float64{}
	typeOf := map[string]models.EntityType{}
	for rank, r := range kw {
		fused[r.EntityID] += 1.0 / float64(rrfK+rank+1)
		typeOf[r.EntityID] = r.EntityType
	}
	for rank, h := range sem {
		fused[h.id] += 1.0 / float64(rrfK+rank+1)
		typeOf[h.id] = h.entityType
	}

	merged := make([]scoredID, 0, len(fused))
	for id, score := range fused {
		merged = append(merged, scoredID{id: id, entityType: typeOf[id], score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].id < merged[j].id
	})

	return s.hydrate(paginate(merged, offset, limit))
}

// hydrate resolves ids to named results
func (s *Service) hydrate(hits []scoredID) ([]Result, error) {
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		name := ids.Name(h.id)
		if parsed, err := ids.Parse(h.id); err == nil {
			if n, err := s.store.EntityName(parsed); err == nil {
				name = n
			}
		}
		out = append(out, Result{
			EntityID:   h.id,
			EntityType: h.entityType,
			Name:       name,
			Score:      h.score,
		})
	}
	return out, nil
}

func paginate(hits []scoredID, offset, limit int) []scoredID {
	if offset >= len(hits) {
		return nil
	}
	hits = hits[offset:]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

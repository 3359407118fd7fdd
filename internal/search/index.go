// ABOUTME: In-memory HNSW indexes over stored entity vectors
// ABOUTME: Built per entity type on demand and invalidated after backfills
package search

import (
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	kvector "github.com/kshard/vector"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/storage"
)

// annIndex holds one type's HNSW graph and its key-to-id mapping
type annIndex struct {
	graph *hnsw.HNSW[vector.VF32]
	ids   []string
}

// indexSet lazily builds and caches HNSW indexes per entity type
type indexSet struct {
	store *storage.Storage

	mu      sync.Mutex
	indexes map[models.EntityType]*annIndex
}

func newIndexSet(store *storage.Storage) *indexSet {
	return &indexSet{
		store:   store,
		indexes: map[models.EntityType]*annIndex{},
	}
}

// get returns the index for a type, building it on first use. Types with no
// embedded vectors yield a nil index.
func (s *indexSet) get(t models.EntityType) (*annIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[t]; ok {
		return idx, nil
	}

	vecs, err := s.store.Embeddings.ListEmbedded(t)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		s.indexes[t] = nil
		return nil, nil
	}

	graph := hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine()))
	ids := make([]string, 0, len(vecs))
	for i, v := range vecs {
		graph.Insert(vector.VF32{Key: uint32(i), Vec: v.Embedding})
		ids = append(ids, v.ID)
	}

	idx := &annIndex{graph: graph, ids: ids}
	s.indexes[t] = idx
	return idx, nil
}

// search runs a KNN query against one type's index
func (s *indexSet) search(t models.EntityType, query []float32, k int) ([]scoredID, error) {
	idx, err := s.get(t)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, nil
	}

	ef := k * 2
	if ef < 100 {
		ef = 100
	}
	neighbors := idx.graph.Search(vector.VF32{Vec: query}, k, ef)

	out := make([]scoredID, 0, len(neighbors))
	for _, n := range neighbors {
		if int(n.Key) >= len(idx.ids) {
			continue
		}
		out = append(out, scoredID{id: idx.ids[n.Key], entityType: t})
	}
	return out, nil
}

// invalidate drops all cached indexes; next search rebuilds from storage
func (s *indexSet) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes = map[models.EntityType]*annIndex{}
}

type scoredID struct {
	id         string
	entityType models.EntityType
	score      float64
}

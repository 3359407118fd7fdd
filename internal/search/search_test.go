// ABOUTME: Tests for keyword, semantic, and hybrid retrieval
// ABOUTME: Uses a fixed-axis fake backend so cosine geometry is exact
package search

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// axisBackend maps a tiny vocabulary onto fixed axes so tests control the
// exact geometry of every vector.
type axisBackend struct {
	embed.Unavailable
	caps   embed.Capabilities
	rerank func(query string, docs []string) []float64
}

var axisWords = map[string]int{"sun": 0, "moon": 1, "tide": 2}

func axisEncode(text string) []float32 {
	vec := make([]float32, 4)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if i, ok := axisWords[w]; ok {
			vec[i]++
		}
	}
	return vmath.Normalize(vec)
}

func (b *axisBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = axisEncode(t)
	}
	return out, nil
}

func (b *axisBackend) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if b.rerank != nil {
		return b.rerank(query, docs), nil
	}
	return make([]float64, len(docs)), nil
}

func (b *axisBackend) Dimension() int                   { return 4 }
func (b *axisBackend) Capabilities() embed.Capabilities { return b.caps }

func newTestService(t *testing.T, backend embed.Backend) (*Service, *storage.Storage) {
	t.Helper()
	store, err := storage.OpenInMemory(4)
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, backend), store
}

func seedCharacter(t *testing.T, store *storage.Storage, id, name, description string) {
	t.Helper()
	c := &models.Character{ID: id, Name: name, Description: description}
	if err := store.Characters.Save(c); err != nil {
		t.Fatalf("Save(%s) failed: %v", id, err)
	}
	if err := store.Embeddings.SetEmbedding(models.TypeCharacter, id, axisEncode(description), description); err != nil {
		t.Fatalf("SetEmbedding(%s) failed: %v", id, err)
	}
}

func seedWorld(t *testing.T, store *storage.Storage) {
	t.Helper()
	seedCharacter(t, store, "character:sol", "Sol", "keeper of the sun temple shrine")
	seedCharacter(t, store, "character:luna", "Luna", "priestess of the moon shrine")
}

func resultIDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.EntityID
	}
	return out
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc, _ := newTestService(t, &axisBackend{})
	_, err := svc.Search(context.Background(), "", Options{})
	if !narraerr.Is(err, narraerr.KindValidation) {
		t.Errorf("Search(\"\") error = %v, want validation", err)
	}
}

func TestSearch_KeywordMatchesDescription(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{})
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "priestess", Options{Mode: ModeKeyword})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %v", len(results), resultIDs(results))
	}
	if results[0].EntityID != "character:luna" {
		t.Errorf("EntityID = %s, want character:luna", results[0].EntityID)
	}
	if results[0].Name != "Luna" {
		t.Errorf("Name = %s, want Luna", results[0].Name)
	}
	if results[0].Score <= 0 {
		t.Errorf("Score = %f, want positive after rank flip", results[0].Score)
	}
}

func TestSearch_KeywordTypeFilter(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{})
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "shrine", Options{
		Mode:  ModeKeyword,
		Types: []models.EntityType{models.TypeCharacter},
	})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d character results, want 2", len(results))
	}

	results, err = svc.Search(context.Background(), "shrine", Options{
		Mode:  ModeKeyword,
		Types: []models.EntityType{models.TypeLocation},
	})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d location results, want 0", len(results))
	}
}

func TestSearch_KeywordPagination(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{})
	seedWorld(t, store)

	first, err := svc.Search(context.Background(), "shrine", Options{Mode: ModeKeyword, Limit: 1})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	second, err := svc.Search(context.Background(), "shrine", Options{Mode: ModeKeyword, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("page sizes = %d, %d, want 1, 1", len(first), len(second))
	}
	if first[0].EntityID == second[0].EntityID {
		t.Errorf("pages overlap on %s", first[0].EntityID)
	}
}

func TestSearch_SemanticRanksByCosine(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{caps: embed.Capabilities{CanEncode: true}})
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "sun", Options{Mode: ModeSemantic})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("got no results")
	}
	if results[0].EntityID != "character:sol" {
		t.Errorf("top result = %s, want character:sol", results[0].EntityID)
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("top score = %f, want 1 for an on-axis match", results[0].Score)
	}
}

func TestSearch_SemanticWithoutBackend(t *testing.T) {
	svc, store := newTestService(t, embed.Unavailable{Dim: 4})
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "sun", Options{Mode: ModeSemantic})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results without a backend, want 0", len(results))
	}
}

func TestSearch_HybridFusesLegs(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{caps: embed.Capabilities{CanEncode: true}})
	seedWorld(t, store)

	// "sun" hits Sol in both legs, Luna only as a distant semantic neighbor
	results, err := svc.Search(context.Background(), "sun", Options{Mode: ModeHybrid})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %v", len(results), resultIDs(results))
	}
	if results[0].EntityID != "character:sol" {
		t.Errorf("top result = %s, want character:sol", results[0].EntityID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("fused scores %f <= %f, want the double-leg hit ahead",
			results[0].Score, results[1].Score)
	}
}

func TestSearch_SemanticOffsetBeyondResults(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{caps: embed.Capabilities{CanEncode: true}})
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "sun", Options{Mode: ModeSemantic, Offset: 50})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results past the end, want 0", len(results))
	}
}

func TestSearch_InvalidateAfterDelete(t *testing.T) {
	svc, store := newTestService(t, &axisBackend{caps: embed.Capabilities{CanEncode: true}})
	seedWorld(t, store)

	// Warm the index, then delete and invalidate
	if _, err := svc.Search(context.Background(), "moon", Options{Mode: ModeSemantic}); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	id, err := ids.Parse("character:luna")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if err := store.DeleteEntity(id, false); err != nil {
		t.Fatalf("DeleteEntity() failed: %v", err)
	}
	svc.Invalidate()

	results, err := svc.Search(context.Background(), "moon", Options{Mode: ModeSemantic})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	for _, r := range results {
		if r.EntityID == "character:luna" {
			t.Error("deleted entity still returned after Invalidate")
		}
	}
}

func TestSearch_RerankReordersByModelScores(t *testing.T) {
	backend := &axisBackend{
		caps: embed.Capabilities{CanRerank: true},
		rerank: func(query string, docs []string) []float64 {
			scores := make([]float64, len(docs))
			for i, d := range docs {
				if strings.Contains(d, "moon") {
					scores[i] = 0.9
				} else {
					scores[i] = 0.1
				}
			}
			return scores
		},
	}
	svc, store := newTestService(t, backend)
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "shrine", Options{Mode: ModeKeyword, Rerank: true})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].EntityID != "character:luna" {
		t.Errorf("top result after rerank = %s, want character:luna", results[0].EntityID)
	}
	if results[0].Score != 0.9 {
		t.Errorf("top score = %f, want the model score 0.9", results[0].Score)
	}
}

func TestSearch_RerankWithoutCapability(t *testing.T) {
	svc, store := newTestService(t, embed.Unavailable{Dim: 4})
	seedWorld(t, store)

	results, err := svc.Search(context.Background(), "shrine", Options{Mode: ModeKeyword, Rerank: true})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want the keyword order untouched", len(results))
	}
}

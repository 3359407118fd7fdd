// ABOUTME: Tests for latent-space vector algebra
// ABOUTME: Growth, misperception, convergence, midpoint, and alignment
package vectorops

import (
	"math"
	"testing"
	"time"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.OpenInMemory(4)
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func axis(i int) []float32 {
	v := make([]float32, 4)
	v[i] = 1
	return v
}

func diagonal(i, j int) []float32 {
	v := make([]float32, 4)
	v[i], v[j] = 1, 1
	return vmath.Normalize(v)
}

func saveEmbedded(t *testing.T, store *storage.Storage, id, name string, vec []float32) {
	t.Helper()
	if err := store.Characters.Save(&models.Character{ID: id, Name: name}); err != nil {
		t.Fatalf("Save(%s) failed: %v", id, err)
	}
	if err := store.Embeddings.SetEmbedding(models.TypeCharacter, id, vec, name); err != nil {
		t.Fatalf("SetEmbedding(%s) failed: %v", id, err)
	}
}

func appendSnap(t *testing.T, store *storage.Storage, id, entityID string, vec []float32, at time.Time) {
	t.Helper()
	err := store.Snapshots.Append(&models.ArcSnapshot{
		ID: id, EntityID: entityID, EntityType: "character", Embedding: vec, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Append(%s) failed: %v", id, err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-5
}

func TestGrowthVector(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	appendSnap(t, store, "snapshot:1", "character:ada", axis(0), t0)
	appendSnap(t, store, "snapshot:2", "character:ada", axis(1), t0.Add(time.Hour))

	g, err := svc.GrowthVector("character:ada")
	if err != nil {
		t.Fatalf("GrowthVector() failed: %v", err)
	}
	want := []float32{-1, 1, 0, 0}
	for i := range want {
		if math.Abs(float64(g.Vector[i]-want[i])) > 1e-5 {
			t.Fatalf("Vector = %v, want %v", g.Vector, want)
		}
	}
	if !approx(g.TotalDrift, 1) {
		t.Errorf("TotalDrift = %f, want 1", g.TotalDrift)
	}
	if g.Snapshots != 2 {
		t.Errorf("Snapshots = %d, want 2", g.Snapshots)
	}
}

func TestGrowthVector_Insufficient(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	appendSnap(t, store, "snapshot:1", "character:ada", axis(0), time.Now().UTC())

	_, err := svc.GrowthVector("character:ada")
	if !narraerr.Is(err, narraerr.KindInsufficient) {
		t.Errorf("GrowthVector() error = %v, want insufficient_data", err)
	}
}

func TestMisperceptionVector(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	saveEmbedded(t, store, "character:bea", "Bea", axis(0))
	p := &models.Perception{ID: "perception:ab", ObserverID: "character:ada", TargetID: "character:bea"}
	if err := store.Perceptions.SavePerception(p); err != nil {
		t.Fatalf("SavePerception() failed: %v", err)
	}
	if err := store.Embeddings.SetEmbedding(models.TypePerception, p.ID, diagonal(0, 1), "view"); err != nil {
		t.Fatalf("SetEmbedding() failed: %v", err)
	}

	vec, err := svc.MisperceptionVector("character:ada", "character:bea")
	if err != nil {
		t.Fatalf("MisperceptionVector() failed: %v", err)
	}
	inv := float32(1 / math.Sqrt2)
	want := []float32{inv - 1, inv, 0, 0}
	for i := range want {
		if math.Abs(float64(vec[i]-want[i])) > 1e-5 {
			t.Fatalf("vector = %v, want %v", vec, want)
		}
	}
}

func TestMisperceptionVector_NoPerception(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	_, err := svc.MisperceptionVector("character:ada", "character:bea")
	if !narraerr.Is(err, narraerr.KindNotFound) {
		t.Errorf("MisperceptionVector() error = %v, want not_found", err)
	}
}

func TestConverging(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	appendSnap(t, store, "snapshot:a1", "character:ada", axis(0), t0)
	appendSnap(t, store, "snapshot:a2", "character:ada", axis(0), t0.Add(time.Hour))
	appendSnap(t, store, "snapshot:b1", "character:bea", axis(1), t0)
	appendSnap(t, store, "snapshot:b2", "character:bea", diagonal(0, 1), t0.Add(time.Hour))

	c, err := svc.Converging("character:ada", "character:bea", 0)
	if err != nil {
		t.Fatalf("Converging() failed: %v", err)
	}
	if len(c.Distances) != 2 {
		t.Fatalf("got %d distances, want 2", len(c.Distances))
	}
	if !approx(c.Distances[0], 1) {
		t.Errorf("Distances[0] = %f, want 1", c.Distances[0])
	}
	if !approx(c.Distances[1], 1-1/math.Sqrt2) {
		t.Errorf("Distances[1] = %f, want %f", c.Distances[1], 1-1/math.Sqrt2)
	}
	if c.Rate >= 0 {
		t.Errorf("Rate = %f, want negative while converging", c.Rate)
	}
}

func TestConverging_Insufficient(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	appendSnap(t, store, "snapshot:a1", "character:ada", axis(0), t0)
	appendSnap(t, store, "snapshot:b1", "character:bea", axis(1), t0)

	_, err := svc.Converging("character:ada", "character:bea", 0)
	if !narraerr.Is(err, narraerr.KindInsufficient) {
		t.Errorf("Converging() error = %v, want insufficient_data", err)
	}
}

func TestMidpoint(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	saveEmbedded(t, store, "character:ada", "Ada", axis(0))
	saveEmbedded(t, store, "character:bea", "Bea", axis(1))
	saveEmbedded(t, store, "character:cal", "Cal", diagonal(0, 1))
	saveEmbedded(t, store, "character:dev", "Dev", axis(2))

	neighbors, err := svc.Midpoint("character:ada", "character:bea", 5)
	if err != nil {
		t.Fatalf("Midpoint() failed: %v", err)
	}
	if len(neighbors) == 0 {
		t.Fatal("got no neighbors")
	}
	if neighbors[0].EntityID != "character:cal" {
		t.Errorf("top neighbor = %s, want character:cal on the midpoint", neighbors[0].EntityID)
	}
	if neighbors[0].Name != "Cal" {
		t.Errorf("top neighbor name = %q, want Cal", neighbors[0].Name)
	}
	for _, n := range neighbors {
		if n.EntityID == "character:ada" || n.EntityID == "character:bea" {
			t.Errorf("endpoint %s not excluded", n.EntityID)
		}
	}
}

func TestNearest(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	saveEmbedded(t, store, "character:ada", "Ada", axis(0))
	saveEmbedded(t, store, "character:cal", "Cal", diagonal(0, 1))
	saveEmbedded(t, store, "character:dev", "Dev", axis(1))

	neighbors, err := svc.Nearest("character:ada", 2)
	if err != nil {
		t.Fatalf("Nearest() failed: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(neighbors))
	}
	if neighbors[0].EntityID != "character:cal" {
		t.Errorf("top neighbor = %s, want character:cal", neighbors[0].EntityID)
	}
	for _, n := range neighbors {
		if n.EntityID == "character:ada" {
			t.Error("query entity not excluded from its own neighbors")
		}
	}
}

func TestFindAligned(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	saveEmbedded(t, store, "character:ada", "Ada", axis(0))
	saveEmbedded(t, store, "character:dev", "Dev", axis(1))

	neighbors, err := svc.FindAligned([]float32{0, 2, 0, 0}, 1)
	if err != nil {
		t.Fatalf("FindAligned() failed: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].EntityID != "character:dev" {
		t.Errorf("neighbors = %v, want character:dev", neighbors)
	}
}

func TestFindAligned_EmptyDirection(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	_, err := svc.FindAligned(nil, 1)
	if !narraerr.Is(err, narraerr.KindValidation) {
		t.Errorf("FindAligned() error = %v, want validation", err)
	}
}

func TestNearest_InvalidID(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	_, err := svc.Nearest("not-an-id", 1)
	if !narraerr.Is(err, narraerr.KindValidation) {
		t.Errorf("Nearest() error = %v, want validation", err)
	}
}

func TestNearest_NoEmbeddingYet(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	if err := store.Characters.Save(&models.Character{ID: "character:ada", Name: "Ada"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	_, err := svc.Nearest("character:ada", 1)
	if !narraerr.Is(err, narraerr.KindInsufficient) {
		t.Errorf("Nearest() error = %v, want insufficient_data", err)
	}
}

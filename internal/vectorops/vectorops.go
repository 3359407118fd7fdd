// ABOUTME: Latent-space vector algebra over entity embeddings and snapshots
// ABOUTME: Growth, misperception, convergence, midpoint, and alignment queries
package vectorops

import (
	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// DefaultConvergenceWindow caps how many snapshot pairs a convergence
// analysis considers.
const DefaultConvergenceWindow = 50

// Service performs vector algebra over stored embeddings
type Service struct {
	store *storage.Storage
}

// NewService creates a vectorops service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Growth is the movement of an entity through latent space
type Growth struct {
	EntityID   string    `json:"entity_id"`
	Vector     []float32 `json:"vector"`
	TotalDrift float64   `json:"total_drift"`
	Snapshots  int       `json:"snapshots"`
}

// GrowthVector returns last−first over an entity's snapshot history.
// At least two snapshots are required.
func (s *Service) GrowthVector(entityID string) (*Growth, error) {
	snaps, err := s.store.Snapshots.History(entityID)
	if err != nil {
		return nil, err
	}
	if len(snaps) < 2 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"need at least 2 snapshots to compute growth, have %d", len(snaps))
	}

	first := snaps[0].Embedding
	last := snaps[len(snaps)-1].Embedding
	return &Growth{
		EntityID:   entityID,
		Vector:     vmath.Subtract(last, first),
		TotalDrift: float64(1 - vmath.CosineSimilarity(first, last)),
		Snapshots:  len(snaps),
	}, nil
}

// MisperceptionVector returns perception embedding minus target embedding:
// the direction in which the observer's view distorts the target.
func (s *Service) MisperceptionVector(observerID, targetID string) ([]float32, error) {
	p, err := s.store.Perceptions.GetPerceptionBetween(observerID, targetID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, narraerr.NotFound("perception", observerID+" -> "+targetID)
	}
	pvec, _, err := s.store.Embeddings.GetEmbedding(models.TypePerception, p.ID)
	if err != nil {
		return nil, err
	}
	tvec, _, err := s.store.Embeddings.GetEmbedding(models.TypeCharacter, targetID)
	if err != nil {
		return nil, err
	}
	if len(pvec) == 0 || len(tvec) == 0 {
		return nil, narraerr.New(narraerr.KindInsufficient, "perception or target has no embedding")
	}
	return vmath.Subtract(pvec, tvec), nil
}

// Convergence measures whether two entities drift together or apart
type Convergence struct {
	EntityA   string    `json:"entity_a"`
	EntityB   string    `json:"entity_b"`
	Distances []float64 `json:"distances"`
	Rate      float64   `json:"rate"`
}

// Converging reports the paired snapshot distance series and its rate of
// change. Negative rate means the entities are converging.
func (s *Service) Converging(entityA, entityB string, window int) (*Convergence, error) {
	if window <= 0 {
		window = DefaultConvergenceWindow
	}

	sa, err := s.store.Snapshots.Recent(entityA, window)
	if err != nil {
		return nil, err
	}
	sb, err := s.store.Snapshots.Recent(entityB, window)
	if err != nil {
		return nil, err
	}
	reverse(sa)
	reverse(sb)

	n := len(sa)
	if len(sb) < n {
		n = len(sb)
	}
	if n < 2 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"need at least 2 paired snapshots, have %d", n)
	}

	distances := make([]float64, n)
	for i := 0; i < n; i++ {
		distances[i] = float64(1 - vmath.CosineSimilarity(sa[i].Embedding, sb[i].Embedding))
	}

	return &Convergence{
		EntityA:   entityA,
		EntityB:   entityB,
		Distances: distances,
		Rate:      (distances[n-1] - distances[0]) / float64(n-1),
	}, nil
}

// Neighbor is one nearest-entity hit
type Neighbor struct {
	EntityID   string            `json:"id"`
	EntityType models.EntityType `json:"type"`
	Name       string            `json:"name"`
	Similarity float64           `json:"similarity"`
}

// Midpoint finds entities near the average of two entity embeddings,
// excluding the two endpoints.
func (s *Service) Midpoint(entityA, entityB string, limit int) ([]Neighbor, error) {
	va, err := s.embeddingOf(entityA)
	if err != nil {
		return nil, err
	}
	vb, err := s.embeddingOf(entityB)
	if err != nil {
		return nil, err
	}

	mid := vmath.Midpoint(va, vb)
	return s.nearest(mid, limit, []string{entityA, entityB})
}

// FindAligned finds entities whose embedding points in the direction of a
// reference vector, e.g. a growth or misperception vector.
func (s *Service) FindAligned(direction []float32, limit int) ([]Neighbor, error) {
	if len(direction) == 0 {
		return nil, narraerr.Validation("direction vector must not be empty")
	}
	return s.nearest(vmath.Normalize(direction), limit, nil)
}

// Nearest finds the entities closest to an entity's own embedding
func (s *Service) Nearest(entityID string, limit int) ([]Neighbor, error) {
	vec, err := s.embeddingOf(entityID)
	if err != nil {
		return nil, err
	}
	return s.nearest(vec, limit, []string{entityID})
}

// nearest runs the ANN operator, over-fetching to absorb exclusions
func (s *Service) nearest(query []float32, limit int, exclude []string) ([]Neighbor, error) {
	if limit <= 0 {
		limit = 10
	}
	matches, err := s.store.Vectors.Search(query, limit*2, []models.EntityType{
		models.TypeCharacter, models.TypeLocation, models.TypeEvent, models.TypeScene,
	})
	if err != nil {
		return nil, err
	}

	excluded := map[string]bool{}
	for _, id := range exclude {
		excluded[id] = true
	}

	out := make([]Neighbor, 0, limit)
	for _, m := range matches {
		if excluded[m.EntityID] {
			continue
		}
		name := m.EntityID
		if parsed, err := ids.Parse(m.EntityID); err == nil {
			if n, err := s.store.EntityName(parsed); err == nil {
				name = n
			}
		}
		out = append(out, Neighbor{
			EntityID:   m.EntityID,
			EntityType: m.EntityType,
			Name:       name,
			Similarity: m.Similarity,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// embeddingOf loads a fresh embedding for any embeddable entity id
func (s *Service) embeddingOf(entityID string) ([]float32, error) {
	parsed, err := ids.Parse(entityID)
	if err != nil {
		return nil, narraerr.Validation("invalid entity id %q", entityID)
	}
	t := models.EntityType(parsed.Table)
	if !t.HasEmbeddings() {
		return nil, narraerr.Validation("entity type %q has no embeddings", parsed.Table)
	}
	vec, _, err := s.store.Embeddings.GetEmbedding(t, entityID)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, narraerr.New(narraerr.KindInsufficient, "%s has no embedding yet", entityID)
	}
	return vec, nil
}

func reverse(s []models.ArcSnapshot) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

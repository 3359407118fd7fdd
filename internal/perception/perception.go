// ABOUTME: Perception analytics: gap, matrix, and shift over time
// ABOUTME: Gap is cosine distance between a perception and its target
package perception

import (
	"fmt"
	"sort"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// Service analyzes perceives edges against their targets
type Service struct {
	store *storage.Storage
}

// NewService creates a perception service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Gap is one observer's distortion of one target
type Gap struct {
	ObserverID string  `json:"observer"`
	Observer   string  `json:"observer_name"`
	TargetID   string  `json:"target"`
	Target     string  `json:"target_name"`
	Gap        float64 `json:"gap"`
	Assessment string  `json:"assessment"`
}

// Gap measures how far an observer's view of a target is from the target's
// own embedding.
func (s *Service) Gap(observerID, targetID string) (*Gap, error) {
	p, err := s.store.Perceptions.GetPerceptionBetween(observerID, targetID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, narraerr.NotFound("perception", observerID+" -> "+targetID)
	}
	return s.gapOf(p)
}

func (s *Service) gapOf(p *models.Perception) (*Gap, error) {
	pvec, _, err := s.store.Embeddings.GetEmbedding(models.TypePerception, p.ID)
	if err != nil {
		return nil, err
	}
	tvec, _, err := s.store.Embeddings.GetEmbedding(models.TypeCharacter, p.TargetID)
	if err != nil {
		return nil, err
	}
	if len(pvec) == 0 || len(tvec) == 0 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"perception or target of %s has no embedding", p.ID)
	}

	gap := float64(1 - vmath.CosineSimilarity(pvec, tvec))
	return &Gap{
		ObserverID: p.ObserverID,
		Observer:   s.nameOf(p.ObserverID),
		TargetID:   p.TargetID,
		Target:     s.nameOf(p.TargetID),
		Gap:        gap,
		Assessment: Assessment(gap),
	}, nil
}

// Assessment translates a gap magnitude into editorial language
func Assessment(gap float64) string {
	switch {
	case gap < 0.05:
		return "remarkably accurate"
	case gap < 0.15:
		return "fairly accurate"
	case gap < 0.30:
		return "notable blind spots"
	case gap < 0.50:
		return "significantly distorted"
	default:
		return "dramatically wrong"
	}
}

// MatrixRow is one observer's standing in a perception matrix
type MatrixRow struct {
	Gap
	AgreesWith    string `json:"agrees_with,omitempty"`
	DisagreesWith string `json:"disagrees_with,omitempty"`
}

// Matrix compares every observer of one target: who sees them most
// accurately, and which observers agree with each other.
func (s *Service) Matrix(targetID string) ([]MatrixRow, error) {
	perceptions, err := s.store.Perceptions.ListPerceptionsOf(targetID)
	if err != nil {
		return nil, err
	}

	type entry struct {
		gap *Gap
		vec []float32
	}
	var entries []entry
	for i := range perceptions {
		p := &perceptions[i]
		g, err := s.gapOf(p)
		if err != nil {
			if narraerr.Is(err, narraerr.KindInsufficient) {
				continue
			}
			return nil, err
		}
		vec, _, err := s.store.Embeddings.GetEmbedding(models.TypePerception, p.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{gap: g, vec: vec})
	}
	if len(entries) == 0 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"no embedded perceptions of %s", targetID)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].gap.Gap < entries[j].gap.Gap
	})

	rows := make([]MatrixRow, len(entries))
	for i, e := range entries {
		row := MatrixRow{Gap: *e.gap}
		if len(entries) > 1 {
			bestSim, worstSim := float32(-2), float32(2)
			for j, other := range entries {
				if j == i {
					continue
				}
				sim := vmath.CosineSimilarity(e.vec, other.vec)
				if sim > bestSim {
					bestSim = sim
					row.AgreesWith = other.gap.Observer
				}
				if sim < worstSim {
					worstSim = sim
					row.DisagreesWith = other.gap.Observer
				}
			}
			// A single pairing means agree and disagree are the same
			// observer; only report disagreement among 3+
			if len(entries) == 2 {
				row.DisagreesWith = ""
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// ShiftPoint is one perception snapshot measured against the target
// snapshot of nearest timestamp at or before it. Delta is the gap change
// from the previous point.
type ShiftPoint struct {
	Timestamp string  `json:"timestamp"`
	EventID   string  `json:"event,omitempty"`
	Gap       float64 `json:"gap"`
	Delta     float64 `json:"delta"`
}

// Shift tracks how a perception has moved relative to its target
type Shift struct {
	ObserverID string       `json:"observer"`
	TargetID   string       `json:"target"`
	Points     []ShiftPoint `json:"points"`
	Delta      float64      `json:"delta"`
	Trajectory string       `json:"trajectory"`
	Message    string       `json:"message"`
}

// Shift walks the perception's snapshot history, pairing each snapshot
// with the target's state at that moment, and reports whether the view
// is converging on who the target actually is. Perception snapshots
// taken before the target was ever snapshotted are skipped.
func (s *Service) Shift(observerID, targetID string) (*Shift, error) {
	p, err := s.store.Perceptions.GetPerceptionBetween(observerID, targetID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, narraerr.NotFound("perception", observerID+" -> "+targetID)
	}

	pSnaps, err := s.store.Snapshots.History(p.ID)
	if err != nil {
		return nil, err
	}
	tSnaps, err := s.store.Snapshots.History(targetID)
	if err != nil {
		return nil, err
	}

	points := make([]ShiftPoint, 0, len(pSnaps))
	ti := -1
	for i := range pSnaps {
		// Both histories run oldest first, so the cursor only advances
		for ti+1 < len(tSnaps) && !tSnaps[ti+1].CreatedAt.After(pSnaps[i].CreatedAt) {
			ti++
		}
		if ti < 0 {
			continue
		}
		gap := float64(1 - vmath.CosineSimilarity(pSnaps[i].Embedding, tSnaps[ti].Embedding))
		pt := ShiftPoint{
			Timestamp: pSnaps[i].CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			EventID:   pSnaps[i].EventID,
			Gap:       gap,
		}
		if len(points) > 0 {
			pt.Delta = gap - points[len(points)-1].Gap
		}
		points = append(points, pt)
	}
	if len(points) < 2 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"need at least 2 paired snapshots to track a shift, have %d", len(points))
	}

	n := len(points)
	delta := points[n-1].Gap - points[0].Gap
	observer := s.nameOf(observerID)
	target := s.nameOf(targetID)

	var trajectory, message string
	switch {
	case delta < -0.02:
		trajectory = "converging"
		message = fmt.Sprintf("%s's view of %s is converging on who %s actually is (gap %.3f -> %.3f)",
			observer, target, target, points[0].Gap, points[n-1].Gap)
	case delta > 0.02:
		trajectory = "diverging"
		message = fmt.Sprintf("%s's view of %s is drifting away from who %s actually is (gap %.3f -> %.3f)",
			observer, target, target, points[0].Gap, points[n-1].Gap)
	default:
		trajectory = "stable"
		message = fmt.Sprintf("%s's view of %s is holding steady (gap %.3f)", observer, target, points[n-1].Gap)
	}

	return &Shift{
		ObserverID: observerID,
		TargetID:   targetID,
		Points:     points,
		Delta:      delta,
		Trajectory: trajectory,
		Message:    message,
	}, nil
}

func (s *Service) nameOf(characterID string) string {
	c, err := s.store.Characters.GetByID(characterID)
	if err != nil || c == nil {
		return characterID
	}
	return c.Name
}

// ABOUTME: Arc analytics over snapshot histories: history, compare, moment
// ABOUTME: Assessments translate drift magnitudes into editorial language
package arc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// Service analyzes entity arcs
type Service struct {
	store *storage.Storage
}

// NewService creates an arc service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Step is one hop in an arc history. CumulativeDrift is the running sum
// of deltas up to and including this snapshot.
type Step struct {
	SnapshotID      string  `json:"snapshot_id"`
	CreatedAt       string  `json:"created_at"`
	EventID         string  `json:"event_id,omitempty"`
	Delta           float64 `json:"delta"`
	CumulativeDrift float64 `json:"cumulative_drift"`
}

// History summarizes an entity's movement through latent space
type History struct {
	EntityID        string  `json:"entity_id"`
	Steps           []Step  `json:"steps"`
	NetDisplacement float64 `json:"net_displacement"`
	Assessment      string  `json:"assessment"`
}

// History returns an entity's arc. The window accepts "recent:N" to limit
// to the newest N snapshots, or "" for the full history.
func (s *Service) History(entityID, window string) (*History, error) {
	snaps, err := s.snapshots(entityID, window)
	if err != nil {
		return nil, err
	}
	if len(snaps) < 2 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"need at least 2 snapshots for an arc, have %d", len(snaps))
	}

	steps := make([]Step, 0, len(snaps)-1)
	var cumulative float64
	for i := 1; i < len(snaps); i++ {
		delta := float64(1 - vmath.CosineSimilarity(snaps[i-1].Embedding, snaps[i].Embedding))
		cumulative += delta
		steps = append(steps, Step{
			SnapshotID:      snaps[i].ID,
			CreatedAt:       snaps[i].CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			EventID:         snaps[i].EventID,
			Delta:           delta,
			CumulativeDrift: cumulative,
		})
	}

	net := float64(1 - vmath.CosineSimilarity(snaps[0].Embedding, snaps[len(snaps)-1].Embedding))
	return &History{
		EntityID:        entityID,
		Steps:           steps,
		NetDisplacement: net,
		Assessment:      Assessment(net),
	}, nil
}

// Assessment translates a net displacement into editorial language
func Assessment(netDisplacement float64) string {
	switch {
	case netDisplacement < 0.02:
		return "essentially unchanged"
	case netDisplacement < 0.1:
		return "minor evolution"
	case netDisplacement < 0.3:
		return "significant evolution"
	default:
		return "dramatic transformation"
	}
}

// Comparison relates the arcs of two entities
type Comparison struct {
	EntityA           string  `json:"entity_a"`
	EntityB           string  `json:"entity_b"`
	InitialSimilarity float64 `json:"initial_similarity"`
	CurrentSimilarity float64 `json:"current_similarity"`
	ConvergenceDelta  float64 `json:"convergence_delta"`
	Convergence       string  `json:"convergence"`
	TrajectoryCosine  float64 `json:"trajectory_cosine"`
	Trajectory        string  `json:"trajectory"`
}

// Compare relates two entities' arcs: are they converging, and do their
// trajectories point the same way? The window accepts "recent:N" like
// History; a window larger than either history uses what exists.
func (s *Service) Compare(entityA, entityB, window string) (*Comparison, error) {
	sa, err := s.snapshots(entityA, window)
	if err != nil {
		return nil, err
	}
	sb, err := s.snapshots(entityB, window)
	if err != nil {
		return nil, err
	}
	if len(sa) < 2 || len(sb) < 2 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"both entities need at least 2 snapshots")
	}

	initial := float64(vmath.CosineSimilarity(sa[0].Embedding, sb[0].Embedding))
	current := float64(vmath.CosineSimilarity(sa[len(sa)-1].Embedding, sb[len(sb)-1].Embedding))
	delta := current - initial

	convergence := "stable"
	switch {
	case delta > 0.02:
		convergence = "converging"
	case delta < -0.02:
		convergence = "diverging"
	}

	dirA := vmath.Subtract(sa[len(sa)-1].Embedding, sa[0].Embedding)
	dirB := vmath.Subtract(sb[len(sb)-1].Embedding, sb[0].Embedding)
	trajCos := float64(vmath.CosineSimilarity(dirA, dirB))

	trajectory := "independent"
	switch {
	case trajCos > 0.5:
		trajectory = "similar"
	case trajCos < -0.3:
		trajectory = "opposite"
	}

	return &Comparison{
		EntityA:           entityA,
		EntityB:           entityB,
		InitialSimilarity: initial,
		CurrentSimilarity: current,
		ConvergenceDelta:  delta,
		Convergence:       convergence,
		TrajectoryCosine:  trajCos,
		Trajectory:        trajectory,
	}, nil
}

// DriftEntry ranks one entity by how far it has moved
type DriftEntry struct {
	EntityID        string  `json:"entity_id"`
	Name            string  `json:"name"`
	NetDisplacement float64 `json:"net_displacement"`
	Snapshots       int     `json:"snapshots"`
	Assessment      string  `json:"assessment"`
}

// Drift ranks all snapshotted entities by net displacement, largest
// movers first. Entities with fewer than two snapshots are skipped.
func (s *Service) Drift(limit int) ([]DriftEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	entityIDs, err := s.store.Snapshots.EntityIDs()
	if err != nil {
		return nil, err
	}

	var out []DriftEntry
	for _, id := range entityIDs {
		snaps, err := s.store.Snapshots.History(id)
		if err != nil {
			return nil, err
		}
		if len(snaps) < 2 {
			continue
		}
		net := float64(1 - vmath.CosineSimilarity(snaps[0].Embedding, snaps[len(snaps)-1].Embedding))
		out = append(out, DriftEntry{
			EntityID:        id,
			Name:            s.store.EntityNameOrID(id),
			NetDisplacement: net,
			Snapshots:       len(snaps),
			Assessment:      Assessment(net),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NetDisplacement != out[j].NetDisplacement {
			return out[i].NetDisplacement > out[j].NetDisplacement
		}
		return out[i].EntityID < out[j].EntityID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Moment returns who an entity was at the time of an event: the newest
// snapshot at or before the event's creation time. An empty eventID
// asks for the overall latest snapshot.
func (s *Service) Moment(entityID, eventID string) (*models.ArcSnapshot, error) {
	if eventID == "" {
		snap, err := s.store.Snapshots.Latest(entityID)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, narraerr.New(narraerr.KindNotFound,
				"no snapshot of %s yet", entityID)
		}
		return snap, nil
	}

	ev, err := s.store.Events.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, narraerr.NotFound("event", eventID)
	}

	snap, err := s.store.Snapshots.LatestBefore(entityID, ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, narraerr.New(narraerr.KindNotFound,
			"no snapshot of %s at or before %s", entityID, eventID)
	}
	return snap, nil
}

// snapshots loads an entity's history, honoring a "recent:N" window
func (s *Service) snapshots(entityID, window string) ([]models.ArcSnapshot, error) {
	if n, ok := parseRecent(window); ok {
		snaps, err := s.store.Snapshots.Recent(entityID, n)
		if err != nil {
			return nil, err
		}
		// Recent returns newest first; arcs read oldest first
		for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
			snaps[i], snaps[j] = snaps[j], snaps[i]
		}
		return snaps, nil
	}
	if window != "" {
		return nil, narraerr.Validation("invalid window %q, expected \"recent:N\"", window)
	}
	return s.store.Snapshots.History(entityID)
}

func parseRecent(window string) (int, bool) {
	rest, ok := strings.CutPrefix(window, "recent:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

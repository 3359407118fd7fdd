// ABOUTME: Narrative phase detection and phase-graph queries
// ABOUTME: Soft k-means over narrative vectors, persisted whole on each run
package temporal

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// softMembershipSlack admits an entity into any cluster whose centroid is
// within this factor of its primary distance.
const softMembershipSlack = 1.2

// Service detects and queries narrative phases
type Service struct {
	store *storage.Storage
}

// NewService creates a temporal service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Options tune one detection run
type Options struct {
	// K fixes the phase count; nil means automatic
	K *int
	// Weights blend the narrative vector blocks; zero value means defaults
	Weights Weights
}

// PhaseDetail is a phase with its resolved members
type PhaseDetail struct {
	Phase   models.Phase             `json:"phase"`
	Members []models.PhaseMembership `json:"members"`
}

// Detect clusters the world into narrative phases and persists the result,
// replacing any previously saved phases.
func (s *Service) Detect(opts Options) ([]PhaseDetail, error) {
	w := opts.Weights
	if w == (Weights{}) {
		w = DefaultWeights()
	}

	entities, err := loadClusterEntities(s.store)
	if err != nil {
		return nil, err
	}
	if len(entities) < 3 {
		return nil, narraerr.New(narraerr.KindInsufficient,
			"insufficient embedded entities for phase detection: have %d, need 3", len(entities))
	}

	byID := make(map[string]*clusterEntity, len(entities))
	for _, e := range entities {
		byID[e.id] = e
	}

	points := make([][]float64, len(entities))
	for i, e := range entities {
		points[i] = narrativeVector(e, byID, w)
	}

	k := autoK(len(entities))
	if opts.K != nil {
		k = clampK(*opts.K, len(entities))
	}

	result := runKMeans(points, k)

	// Soft membership: an entity joins every cluster whose centroid lies
	// within slack of its primary distance.
	memberSets := make([][]models.PhaseMembership, k)
	for i, e := range entities {
		primary := result.distances[i]
		limit := primary * softMembershipSlack
		for c := range result.centroids {
			d := vmath.EuclideanDistance(points[i], result.centroids[c])
			if c != result.assignments[i] && d > limit {
				continue
			}
			var pos *float64
			if m := e.medianPosition(); m != nil {
				pos = m
			}
			memberSets[c] = append(memberSets[c], models.PhaseMembership{
				EntityID:         e.id,
				EntityType:       string(e.entityType),
				EntityName:       e.name,
				Centrality:       1 / (1 + d),
				SequencePosition: pos,
			})
		}
	}

	details := make([]PhaseDetail, 0, k)
	for c := 0; c < k; c++ {
		members := memberSets[c]
		sort.Slice(members, func(i, j int) bool {
			if members[i].Centrality != members[j].Centrality {
				return members[i].Centrality > members[j].Centrality
			}
			return members[i].EntityID < members[j].EntityID
		})

		phase := models.Phase{
			ID:             "phase:" + uuid.NewString(),
			WeightContent:  w.Content,
			WeightNeighbor: w.Neighborhood,
			WeightTemporal: w.Temporal,
			MemberCount:    len(members),
		}
		s.decorate(&phase, members, byID)
		details = append(details, PhaseDetail{Phase: phase, Members: members})
	}

	// Order phases by the median timeline position of their members;
	// phases with no positioned members sort last.
	sort.SliceStable(details, func(i, j int) bool {
		return phaseMedian(details[i].Members) < phaseMedian(details[j].Members)
	})
	for i := range details {
		details[i].Phase.PhaseOrder = i
		for m := range details[i].Members {
			details[i].Members[m].PhaseID = details[i].Phase.ID
		}
	}

	if err := s.save(details); err != nil {
		return nil, err
	}
	return details, nil
}

// decorate fills the label, sequence range, and type counts of a phase
func (s *Service) decorate(phase *models.Phase, members []models.PhaseMembership, byID map[string]*clusterEntity) {
	counts := map[string]int{}
	for _, m := range members {
		counts[m.EntityType]++
	}
	phase.EntityTypeCounts = counts

	// Label from the most central names, events first, then scenes
	var names []string
	for _, want := range []string{string(models.TypeEvent), string(models.TypeScene), ""} {
		for _, m := range members {
			if len(names) == 2 {
				break
			}
			if want != "" && m.EntityType != want {
				continue
			}
			if want == "" && (m.EntityType == string(models.TypeEvent) || m.EntityType == string(models.TypeScene)) {
				continue
			}
			if m.EntityName != "" && !contains(names, m.EntityName) {
				names = append(names, m.EntityName)
			}
		}
		if len(names) == 2 {
			break
		}
	}

	minSeq, maxSeq, haveSeq := sequenceRange(members, byID)
	if haveSeq {
		phase.SequenceRangeMin = &minSeq
		phase.SequenceRangeMax = &maxSeq
	}

	switch {
	case len(names) == 0:
		phase.Label = "Unnamed Phase"
	case haveSeq && minSeq == maxSeq:
		phase.Label = fmt.Sprintf("%s (seq %d)", joinNames(names), minSeq)
	case haveSeq:
		phase.Label = fmt.Sprintf("%s (seq %d-%d)", joinNames(names), minSeq, maxSeq)
	default:
		phase.Label = joinNames(names)
	}
}

// sequenceRange unions the raw event sequences reachable from every
// member: events carry their own, scenes their event's, characters and
// locations the sequences of the scenes they appear in.
func sequenceRange(members []models.PhaseMembership, byID map[string]*clusterEntity) (int64, int64, bool) {
	var minSeq, maxSeq int64
	have := false
	for _, m := range members {
		e, ok := byID[m.EntityID]
		if !ok {
			continue
		}
		for _, seq := range e.sequences {
			if !have || seq < minSeq {
				minSeq = seq
			}
			if !have || seq > maxSeq {
				maxSeq = seq
			}
			have = true
		}
	}
	return minSeq, maxSeq, have
}

func (s *Service) save(details []PhaseDetail) error {
	phases := make([]models.Phase, len(details))
	var memberships []models.PhaseMembership
	for i, d := range details {
		phases[i] = d.Phase
		memberships = append(memberships, d.Members...)
	}
	return s.store.Phases.ReplaceAll(phases, memberships)
}

// LoadOrDetect returns the persisted phases, running detection first when
// none are saved.
func (s *Service) LoadOrDetect(opts Options) ([]PhaseDetail, error) {
	has, err := s.store.Phases.HasPhases()
	if err != nil {
		return nil, err
	}
	if !has {
		return s.Detect(opts)
	}

	phases, err := s.store.Phases.List()
	if err != nil {
		return nil, err
	}
	details := make([]PhaseDetail, len(phases))
	for i, p := range phases {
		members, err := s.store.Phases.Memberships(p.ID)
		if err != nil {
			return nil, err
		}
		details[i] = PhaseDetail{Phase: p, Members: members}
	}
	return details, nil
}

// Forget deletes all persisted phases
func (s *Service) Forget() error {
	return s.store.Phases.DeleteAll()
}

// Neighbor is one entity ranked by narrative closeness to an anchor
type Neighbor struct {
	EntityID     string   `json:"id"`
	EntityType   string   `json:"type"`
	Name         string   `json:"name"`
	Similarity   float64  `json:"similarity"`
	SharedScenes int      `json:"shared_scenes"`
	TimeDistance *float64 `json:"time_distance,omitempty"`
}

// Around is the narrative neighborhood of an anchor entity
type Around struct {
	AnchorID     string         `json:"anchor"`
	AnchorPhases []models.Phase `json:"anchor_phases"`
	Neighbors    []Neighbor     `json:"neighbors"`
}

// QueryAround ranks all entities by narrative-vector similarity to an
// anchor: same story region, same company, same era.
func (s *Service) QueryAround(anchorID string, limit int, opts Options) (*Around, error) {
	if limit <= 0 {
		limit = 10
	}
	w := opts.Weights
	if w == (Weights{}) {
		w = DefaultWeights()
	}

	entities, err := loadClusterEntities(s.store)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*clusterEntity, len(entities))
	for _, e := range entities {
		byID[e.id] = e
	}
	anchor, ok := byID[anchorID]
	if !ok {
		return nil, narraerr.New(narraerr.KindNotFound,
			"%s has no embedding to anchor a narrative query", anchorID)
	}

	anchorVec := toF32(narrativeVector(anchor, byID, w))
	anchorMedian := anchor.medianPosition()

	var neighbors []Neighbor
	for _, e := range entities {
		if e.id == anchorID {
			continue
		}
		sim := float64(vmath.CosineSimilarity(anchorVec, toF32(narrativeVector(e, byID, w))))

		shared := 0
		if anchor.entityType == models.TypeCharacter && e.entityType == models.TypeCharacter {
			shared, err = s.store.Scenes.SharedScenes(anchorID, e.id)
			if err != nil {
				return nil, err
			}
		}

		var timeDist *float64
		if m := e.medianPosition(); m != nil && anchorMedian != nil {
			d := math.Abs(*anchorMedian - *m)
			timeDist = &d
		}

		neighbors = append(neighbors, Neighbor{
			EntityID:     e.id,
			EntityType:   string(e.entityType),
			Name:         e.name,
			Similarity:   sim,
			SharedScenes: shared,
			TimeDistance: timeDist,
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].EntityID < neighbors[j].EntityID
	})
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	details, err := s.LoadOrDetect(opts)
	if err != nil {
		return nil, err
	}
	var anchorPhases []models.Phase
	for _, d := range details {
		for _, m := range d.Members {
			if m.EntityID == anchorID {
				anchorPhases = append(anchorPhases, d.Phase)
				break
			}
		}
	}

	return &Around{
		AnchorID:     anchorID,
		AnchorPhases: anchorPhases,
		Neighbors:    neighbors,
	}, nil
}

// Bridge is an entity spanning multiple phases
type Bridge struct {
	EntityID       string   `json:"id"`
	EntityType     string   `json:"type"`
	Name           string   `json:"name"`
	Phases         []string `json:"phases"`
	BridgeStrength float64  `json:"bridge_strength"`
}

// Connection counts how many entities two phases share
type Connection struct {
	PhaseA string `json:"phase_a"`
	PhaseB string `json:"phase_b"`
	Shared int    `json:"shared"`
}

// Transitions lists the bridge entities and phase connections
type Transitions struct {
	Bridges     []Bridge     `json:"bridges"`
	Connections []Connection `json:"connections"`
}

// DetectTransitions finds the entities that span phases and the phase
// pairs they connect.
func (s *Service) DetectTransitions(opts Options) (*Transitions, error) {
	details, err := s.LoadOrDetect(opts)
	if err != nil {
		return nil, err
	}

	labels := map[string]string{}
	byEntity := map[string][]models.PhaseMembership{}
	for _, d := range details {
		labels[d.Phase.ID] = d.Phase.Label
		for _, m := range d.Members {
			byEntity[m.EntityID] = append(byEntity[m.EntityID], m)
		}
	}

	var bridges []Bridge
	pairCounts := map[[2]string]int{}
	for _, memberships := range byEntity {
		if len(memberships) < 2 {
			continue
		}

		var sum float64
		phases := make([]string, 0, len(memberships))
		for _, m := range memberships {
			sum += m.Centrality
			phases = append(phases, labels[m.PhaseID])
		}
		sort.Strings(phases)

		m0 := memberships[0]
		bridges = append(bridges, Bridge{
			EntityID:       m0.EntityID,
			EntityType:     m0.EntityType,
			Name:           m0.EntityName,
			Phases:         phases,
			BridgeStrength: sum / float64(len(memberships)) * float64(len(memberships)),
		})

		for i := 0; i < len(memberships); i++ {
			for j := i + 1; j < len(memberships); j++ {
				a, b := memberships[i].PhaseID, memberships[j].PhaseID
				if a > b {
					a, b = b, a
				}
				pairCounts[[2]string{a, b}]++
			}
		}
	}
	sort.Slice(bridges, func(i, j int) bool {
		if bridges[i].BridgeStrength != bridges[j].BridgeStrength {
			return bridges[i].BridgeStrength > bridges[j].BridgeStrength
		}
		return bridges[i].EntityID < bridges[j].EntityID
	})

	connections := make([]Connection, 0, len(pairCounts))
	for pair, n := range pairCounts {
		connections = append(connections, Connection{
			PhaseA: labels[pair[0]],
			PhaseB: labels[pair[1]],
			Shared: n,
		})
	}
	sort.Slice(connections, func(i, j int) bool {
		if connections[i].Shared != connections[j].Shared {
			return connections[i].Shared > connections[j].Shared
		}
		if connections[i].PhaseA != connections[j].PhaseA {
			return connections[i].PhaseA < connections[j].PhaseA
		}
		return connections[i].PhaseB < connections[j].PhaseB
	})

	return &Transitions{Bridges: bridges, Connections: connections}, nil
}

func phaseMedian(members []models.PhaseMembership) float64 {
	var positions []float64
	for _, m := range members {
		if m.SequencePosition != nil {
			positions = append(positions, *m.SequencePosition)
		}
	}
	if len(positions) == 0 {
		return math.MaxFloat64
	}
	sort.Float64s(positions)
	mid := len(positions) / 2
	if len(positions)%2 == 1 {
		return positions[mid]
	}
	return (positions[mid-1] + positions[mid]) / 2
}

func toF32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func joinNames(names []string) string {
	if len(names) == 2 {
		return names[0] + " & " + names[1]
	}
	return names[0]
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

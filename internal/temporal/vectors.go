// ABOUTME: Narrative vector construction: content, neighborhood, and time
// ABOUTME: Sequence positions and scene co-occurrence feed the three blocks
package temporal

import (
	"math"
	"sort"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// Default blend weights for the three narrative vector blocks.
const (
	DefaultWeightContent      = 0.6
	DefaultWeightNeighborhood = 0.25
	DefaultWeightTemporal     = 0.15
)

// temporalDims is the width of the sinusoidal time block: four
// frequencies, sin and cos each.
const temporalDims = 8

// Weights blend the three narrative vector blocks
type Weights struct {
	Content      float64 `json:"content"`
	Neighborhood float64 `json:"neighborhood"`
	Temporal     float64 `json:"temporal"`
}

// DefaultWeights returns the standard blend
func DefaultWeights() Weights {
	return Weights{
		Content:      DefaultWeightContent,
		Neighborhood: DefaultWeightNeighborhood,
		Temporal:     DefaultWeightTemporal,
	}
}

// clusterEntity is one clustering participant with its inputs resolved.
// positions are normalized to [0,1]; sequences keep the raw event
// sequence numbers reachable from the entity for labeling.
type clusterEntity struct {
	id         string
	entityType models.EntityType
	name       string
	embedding  []float32
	positions  []float64
	sequences  []int64
	cooccur    []string
}

// medianPosition returns the median normalized sequence position, or nil
// when the entity never appears on the timeline.
func (e *clusterEntity) medianPosition() *float64 {
	if len(e.positions) == 0 {
		return nil
	}
	sorted := append([]float64(nil), e.positions...)
	sort.Float64s(sorted)
	var m float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		m = sorted[mid]
	} else {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}

// loadClusterEntities gathers every embedded character, location, event,
// and scene with its timeline positions and scene co-occurrents.
func loadClusterEntities(store *storage.Storage) ([]*clusterEntity, error) {
	byID := map[string]*clusterEntity{}
	var ordered []*clusterEntity

	add := func(id string, t models.EntityType, name string, emb []float32) *clusterEntity {
		e := &clusterEntity{id: id, entityType: t, name: name, embedding: emb}
		byID[id] = e
		ordered = append(ordered, e)
		return e
	}

	maxSeq, err := store.Events.MaxSequence()
	if err != nil {
		return nil, err
	}

	events, err := store.Events.List()
	if err != nil {
		return nil, err
	}
	eventPos := map[string]float64{}
	eventSeq := map[string]int64{}
	for _, ev := range events {
		if !ev.HasEmbedding() {
			continue
		}
		e := add(ev.ID, models.TypeEvent, ev.Title, ev.Embedding)
		e.sequences = append(e.sequences, ev.Sequence)
		eventSeq[ev.ID] = ev.Sequence
		if maxSeq > 0 {
			pos := float64(ev.Sequence) / float64(maxSeq)
			e.positions = append(e.positions, pos)
			eventPos[ev.ID] = pos
		}
	}

	scenes, err := store.Scenes.List()
	if err != nil {
		return nil, err
	}
	scenePos := map[string]float64{}
	sceneSeq := map[string]int64{}
	for _, sc := range scenes {
		if !sc.HasEmbedding() {
			continue
		}
		e := add(sc.ID, models.TypeScene, sc.Title, sc.Embedding)
		if seq, ok := eventSeq[sc.EventID]; ok {
			e.sequences = append(e.sequences, seq)
			sceneSeq[sc.ID] = seq
		}
		if pos, ok := eventPos[sc.EventID]; ok {
			e.positions = append(e.positions, pos)
			scenePos[sc.ID] = pos
		}
	}

	characters, err := store.Characters.List()
	if err != nil {
		return nil, err
	}
	for _, c := range characters {
		if !c.HasEmbedding() {
			continue
		}
		add(c.ID, models.TypeCharacter, c.Name, c.Embedding)
	}

	locations, err := store.Locations.List()
	if err != nil {
		return nil, err
	}
	for _, l := range locations {
		if !l.HasEmbedding() {
			continue
		}
		add(l.ID, models.TypeLocation, l.Name, l.Embedding)
	}

	// Scene membership drives both co-occurrence and the derived
	// positions of characters and locations.
	participants, err := store.Scenes.AllParticipants()
	if err != nil {
		return nil, err
	}
	sceneMembers := map[string][]string{}
	for _, p := range participants {
		sceneMembers[p.SceneID] = append(sceneMembers[p.SceneID], p.CharacterID)
	}
	for _, sc := range scenes {
		members := append([]string{}, sceneMembers[sc.ID]...)
		if sc.PrimaryLocationID != "" {
			members = append(members, sc.PrimaryLocationID)
		}
		members = append(members, sc.ID)

		pos, hasPos := scenePos[sc.ID]
		seq, hasSeq := sceneSeq[sc.ID]
		for _, a := range members {
			ea, ok := byID[a]
			if !ok {
				continue
			}
			if hasPos && a != sc.ID && ea.entityType != models.TypeEvent {
				ea.positions = append(ea.positions, pos)
			}
			if hasSeq && a != sc.ID && ea.entityType != models.TypeEvent {
				ea.sequences = append(ea.sequences, seq)
			}
			for _, b := range members {
				if a != b {
					if _, ok := byID[b]; ok {
						ea.cooccur = append(ea.cooccur, b)
					}
				}
			}
		}
	}

	return ordered, nil
}

// narrativeVector blends the three blocks into one clustering input:
// normalized content embedding, mean co-occurrent embedding, and a
// sinusoidal encoding of the median timeline position.
func narrativeVector(e *clusterEntity, byID map[string]*clusterEntity, w Weights) []float64 {
	content := vmath.Normalize(e.embedding)
	dim := len(content)

	neighborhood := make([]float32, dim)
	if n := len(e.cooccur); n > 0 {
		for _, id := range e.cooccur {
			other := byID[id]
			if other == nil || len(other.embedding) != dim {
				continue
			}
			for i, v := range other.embedding {
				neighborhood[i] += v
			}
		}
		for i := range neighborhood {
			neighborhood[i] /= float32(n)
		}
	}

	out := make([]float64, 0, 2*dim+temporalDims)
	for _, v := range content {
		out = append(out, float64(v)*w.Content)
	}
	for _, v := range neighborhood {
		out = append(out, float64(v)*w.Neighborhood)
	}
	out = append(out, temporalBlock(e.medianPosition(), w.Temporal)...)
	return out
}

// temporalBlock encodes a normalized position as sin/cos pairs at four
// doubling frequencies. A nil position encodes as zeros.
func temporalBlock(pos *float64, weight float64) []float64 {
	block := make([]float64, temporalDims)
	if pos == nil {
		return block
	}
	for i := 0; i < temporalDims/2; i++ {
		freq := float64(int64(1)<<uint(i)) * math.Pi
		block[2*i] = math.Sin(freq**pos) * weight
		block[2*i+1] = math.Cos(freq**pos) * weight
	}
	return block
}

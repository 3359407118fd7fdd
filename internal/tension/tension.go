// ABOUTME: Pairwise tension analysis between characters
// ABOUTME: Signals from knowledge conflicts, loyalties, and desires
package tension

import (
	"fmt"
	"sort"
	"strings"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

// Signal weights per conflict kind.
const (
	weightContradictoryKnowledge = 0.9
	weightKnowledgeDenial        = 0.8
	weightConflictingLoyalty     = 0.8
	weightOpposingDesires        = 0.7
)

// Service detects dramatic tension between characters
type Service struct {
	store *storage.Storage
}

// NewService creates a tension service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Signal is one concrete source of tension
type Signal struct {
	Type        string  `json:"type"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Analysis is the tension reading for one character pair
type Analysis struct {
	CharacterA   string   `json:"character_a"`
	CharacterB   string   `json:"character_b"`
	Signals      []Signal `json:"signals"`
	Severity     float64  `json:"severity"`
	DominantType string   `json:"dominant_type,omitempty"`
}

// Analyze examines one pair of characters for tension signals
func (s *Service) Analyze(aID, bID string) (*Analysis, error) {
	a, err := s.requireCharacter(aID)
	if err != nil {
		return nil, err
	}
	b, err := s.requireCharacter(bID)
	if err != nil {
		return nil, err
	}

	signals, err := s.signals(a, b)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		CharacterA: a.ID,
		CharacterB: b.ID,
		Signals:    signals,
	}
	if len(signals) == 0 {
		return analysis, nil
	}

	var sum float64
	counts := map[string]int{}
	for _, sig := range signals {
		sum += sig.Weight
		counts[sig.Type]++
	}
	severity := sum / float64(len(signals))

	// A declared tension level on either perceives edge raises the stakes
	if level, err := s.tensionLevel(a.ID, b.ID); err != nil {
		return nil, err
	} else if level > 0 {
		severity += float64(level) / 10 * 0.3
	}
	if severity > 1 {
		severity = 1
	}
	analysis.Severity = severity

	best, bestCount := "", 0
	for t, n := range counts {
		if n > bestCount || (n == bestCount && t < best) {
			best, bestCount = t, n
		}
	}
	analysis.DominantType = best
	return analysis, nil
}

// Hotspots analyzes every character pair and returns those with tension,
// most severe first.
func (s *Service) Hotspots(limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 10
	}
	characters, err := s.store.Characters.List()
	if err != nil {
		return nil, err
	}

	var out []Analysis
	for i := 0; i < len(characters); i++ {
		for j := i + 1; j < len(characters); j++ {
			a, err := s.Analyze(characters[i].ID, characters[j].ID)
			if err != nil {
				return nil, err
			}
			if len(a.Signals) > 0 {
				out = append(out, *a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].CharacterA != out[j].CharacterA {
			return out[i].CharacterA < out[j].CharacterA
		}
		return out[i].CharacterB < out[j].CharacterB
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) signals(a, b *models.Character) ([]Signal, error) {
	var signals []Signal

	edgesA, err := s.store.Knowledge.LatestEdges(a.ID)
	if err != nil {
		return nil, err
	}
	edgesB, err := s.store.Knowledge.LatestEdges(b.ID)
	if err != nil {
		return nil, err
	}
	byKnowledgeB := map[string]models.Certainty{}
	for _, e := range edgesB {
		byKnowledgeB[e.KnowledgeID] = e.Certainty
	}

	factOf := func(knowledgeID string) string {
		k, err := s.store.Knowledge.GetByID(knowledgeID)
		if err != nil || k == nil {
			return knowledgeID
		}
		return k.Fact
	}

	for _, e := range edgesA {
		other, shared := byKnowledgeB[e.KnowledgeID]
		if !shared {
			continue
		}
		switch {
		case e.Certainty == models.CertaintyKnows && other == models.CertaintyBelievesWrongly,
			e.Certainty == models.CertaintyBelievesWrongly && other == models.CertaintyKnows:
			signals = append(signals, Signal{
				Type:        "contradictory_knowledge",
				Weight:      weightContradictoryKnowledge,
				Description: fmt.Sprintf("they hold contradictory versions of %q", factOf(e.KnowledgeID)),
			})
		case e.Certainty == models.CertaintyDenies && other == models.CertaintyKnows,
			e.Certainty == models.CertaintyKnows && other == models.CertaintyDenies:
			signals = append(signals, Signal{
				Type:        "knowledge_denial",
				Weight:      weightKnowledgeDenial,
				Description: fmt.Sprintf("one denies what the other knows: %q", factOf(e.KnowledgeID)),
			})
		}
	}

	loyalty, err := s.conflictingLoyalties(a, b)
	if err != nil {
		return nil, err
	}
	signals = append(signals, loyalty...)

	signals = append(signals, opposingDesires(a, b)...)
	return signals, nil
}

// conflictingLoyalties flags allies of the other character's rivals
func (s *Service) conflictingLoyalties(a, b *models.Character) ([]Signal, error) {
	relationships, err := s.store.Perceptions.ListRelationships()
	if err != nil {
		return nil, err
	}

	allies := map[string][]string{}
	rivals := map[string][]string{}
	for _, r := range relationships {
		rel := strings.ToLower(r.RelType)
		if strings.Contains(rel, "ally") {
			allies[r.FromID] = append(allies[r.FromID], r.ToID)
			allies[r.ToID] = append(allies[r.ToID], r.FromID)
		}
		if strings.Contains(rel, "rival") {
			rivals[r.FromID] = append(rivals[r.FromID], r.ToID)
			rivals[r.ToID] = append(rivals[r.ToID], r.FromID)
		}
	}

	var signals []Signal
	check := func(x, y *models.Character) {
		for _, friend := range allies[x.ID] {
			for _, enemy := range rivals[y.ID] {
				if friend == enemy {
					signals = append(signals, Signal{
						Type:        "conflicting_loyalty",
						Weight:      weightConflictingLoyalty,
						Description: fmt.Sprintf("%s is allied with a rival of %s", x.Name, y.Name),
					})
				}
			}
		}
	}
	check(a, b)
	check(b, a)
	return signals, nil
}

// opposingDesires flags two characters who want the same thing, read as
// shared substantive words between their stated desires.
func opposingDesires(a, b *models.Character) []Signal {
	desiresOf := func(c *models.Character) []string {
		out := append([]string{}, c.Profile[models.TraitDesireConscious]...)
		return append(out, c.Profile[models.TraitDesireUnconscious]...)
	}

	var signals []Signal
	for _, da := range desiresOf(a) {
		for _, db := range desiresOf(b) {
			if sharesSubstantiveWord(da, db) {
				signals = append(signals, Signal{
					Type:        "opposing_desires",
					Weight:      weightOpposingDesires,
					Description: fmt.Sprintf("both desires point at the same thing: %q vs %q", da, db),
				})
			}
		}
	}
	return signals
}

func sharesSubstantiveWord(a, b string) bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(a)) {
		if len(w) > 3 {
			words[strings.Trim(w, ".,;:!?")] = true
		}
	}
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if words[strings.Trim(w, ".,;:!?")] {
			return true
		}
	}
	return false
}

// tensionLevel reads the strongest declared tension on the pair's
// perceives edges, either direction.
func (s *Service) tensionLevel(aID, bID string) (int, error) {
	level := 0
	for _, pair := range [][2]string{{aID, bID}, {bID, aID}} {
		p, err := s.store.Perceptions.GetPerceptionBetween(pair[0], pair[1])
		if err != nil {
			return 0, err
		}
		if p != nil && p.TensionLevel != nil && *p.TensionLevel > level {
			level = *p.TensionLevel
		}
	}
	return level, nil
}

func (s *Service) requireCharacter(id string) (*models.Character, error) {
	c, err := s.store.Characters.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, narraerr.NotFound("character", id)
	}
	return c, nil
}

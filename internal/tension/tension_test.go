// ABOUTME: Tests for pairwise tension analysis
// ABOUTME: Exercises each signal kind and hotspot ordering
package tension

import (
	"math"
	"testing"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.OpenInMemory(8)
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveCharacter(t *testing.T, store *storage.Storage, id, name string, profile map[string][]string) {
	t.Helper()
	err := store.Characters.Save(&models.Character{ID: id, Name: name, Profile: profile})
	if err != nil {
		t.Fatalf("Save(%s) failed: %v", id, err)
	}
}

func relate(t *testing.T, store *storage.Storage, id, from, to, relType string) {
	t.Helper()
	err := store.Perceptions.SaveRelationship(&models.Relationship{
		ID: id, FromID: from, ToID: to, RelType: relType,
	})
	if err != nil {
		t.Fatalf("SaveRelationship(%s) failed: %v", id, err)
	}
}

// shareKnowledge creates one proposition and gives both characters an
// edge to it with the given certainties.
func shareKnowledge(t *testing.T, store *storage.Storage, knowledgeID, fact string, holders map[string]models.Certainty) {
	t.Helper()
	var owner string
	for id := range holders {
		if owner == "" || id < owner {
			owner = id
		}
	}
	k := &models.Knowledge{ID: knowledgeID, CharacterID: owner, Fact: fact}
	if err := store.Knowledge.Save(k); err != nil {
		t.Fatalf("Save(%s) failed: %v", knowledgeID, err)
	}
	i := 0
	for charID, certainty := range holders {
		err := store.Knowledge.AppendEdge(&models.KnowledgeEdge{
			ID:          "knowledge_edge:" + knowledgeID + string(rune('a'+i)),
			CharacterID: charID,
			KnowledgeID: knowledgeID,
			Certainty:   certainty,
		})
		if err != nil {
			t.Fatalf("AppendEdge() failed: %v", err)
		}
		i++
	}
}

func signalTypes(a *Analysis) []string {
	out := make([]string, len(a.Signals))
	for i, s := range a.Signals {
		out[i] = s.Type
	}
	return out
}

func hasSignal(a *Analysis, signalType string) bool {
	for _, s := range a.Signals {
		if s.Type == signalType {
			return true
		}
	}
	return false
}

func TestAnalyze_NoSignals(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)
	saveCharacter(t, store, "character:b", "Bruno", nil)

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if len(a.Signals) != 0 {
		t.Errorf("Signals = %v, want none", signalTypes(a))
	}
	if a.Severity != 0 {
		t.Errorf("Severity = %f, want 0", a.Severity)
	}
	if a.DominantType != "" {
		t.Errorf("DominantType = %q, want empty", a.DominantType)
	}
}

func TestAnalyze_ContradictoryKnowledge(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)
	saveCharacter(t, store, "character:b", "Bruno", nil)
	shareKnowledge(t, store, "knowledge:deed", "the deed is buried under the oak", map[string]models.Certainty{
		"character:a": models.CertaintyKnows,
		"character:b": models.CertaintyBelievesWrongly,
	})

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if !hasSignal(a, "contradictory_knowledge") {
		t.Fatalf("Signals = %v, want contradictory_knowledge", signalTypes(a))
	}
	if a.DominantType != "contradictory_knowledge" {
		t.Errorf("DominantType = %q, want contradictory_knowledge", a.DominantType)
	}
	if math.Abs(a.Severity-0.9) > 1e-9 {
		t.Errorf("Severity = %f, want 0.9", a.Severity)
	}
}

func TestAnalyze_KnowledgeDenial(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)
	saveCharacter(t, store, "character:b", "Bruno", nil)
	shareKnowledge(t, store, "knowledge:debt", "the estate is bankrupt", map[string]models.Certainty{
		"character:a": models.CertaintyDenies,
		"character:b": models.CertaintyKnows,
	})

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if !hasSignal(a, "knowledge_denial") {
		t.Errorf("Signals = %v, want knowledge_denial", signalTypes(a))
	}
}

func TestAnalyze_ConflictingLoyalty(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)
	saveCharacter(t, store, "character:b", "Bruno", nil)
	saveCharacter(t, store, "character:c", "Cai", nil)
	relate(t, store, "relationship:1", "character:a", "character:c", "ally")
	relate(t, store, "relationship:2", "character:b", "character:c", "rival")

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if !hasSignal(a, "conflicting_loyalty") {
		t.Errorf("Signals = %v, want conflicting_loyalty", signalTypes(a))
	}
}

func TestAnalyze_OpposingDesires(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", map[string][]string{
		models.TraitDesireConscious: {"claim the throne"},
	})
	saveCharacter(t, store, "character:b", "Bruno", map[string][]string{
		models.TraitDesireUnconscious: {"keep the throne at any cost"},
	})

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if !hasSignal(a, "opposing_desires") {
		t.Errorf("Signals = %v, want opposing_desires", signalTypes(a))
	}
}

func TestAnalyze_ShortWordsDoNotCollide(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", map[string][]string{
		models.TraitDesireConscious: {"to see the sea"},
	})
	saveCharacter(t, store, "character:b", "Bruno", map[string][]string{
		models.TraitDesireConscious: {"to own the mine"},
	})

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if hasSignal(a, "opposing_desires") {
		t.Error("short shared words should not count as opposing desires")
	}
}

func TestAnalyze_DeclaredTensionRaisesSeverity(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", map[string][]string{
		models.TraitDesireConscious: {"claim the throne"},
	})
	saveCharacter(t, store, "character:b", "Bruno", map[string][]string{
		models.TraitDesireConscious: {"defend the throne"},
	})
	level := 5
	err := store.Perceptions.SavePerception(&models.Perception{
		ID:           "perception:1",
		ObserverID:   "character:a",
		TargetID:     "character:b",
		TensionLevel: &level,
	})
	if err != nil {
		t.Fatalf("SavePerception() failed: %v", err)
	}

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	// 0.7 base plus 5/10 * 0.3
	if math.Abs(a.Severity-0.85) > 1e-9 {
		t.Errorf("Severity = %f, want 0.85", a.Severity)
	}
}

func TestAnalyze_SeverityCapped(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)
	saveCharacter(t, store, "character:b", "Bruno", nil)
	shareKnowledge(t, store, "knowledge:deed", "the deed is buried under the oak", map[string]models.Certainty{
		"character:a": models.CertaintyKnows,
		"character:b": models.CertaintyBelievesWrongly,
	})
	level := 10
	err := store.Perceptions.SavePerception(&models.Perception{
		ID:           "perception:1",
		ObserverID:   "character:b",
		TargetID:     "character:a",
		TensionLevel: &level,
	})
	if err != nil {
		t.Fatalf("SavePerception() failed: %v", err)
	}

	a, err := NewService(store).Analyze("character:a", "character:b")
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if a.Severity != 1 {
		t.Errorf("Severity = %f, want capped at 1", a.Severity)
	}
}

func TestAnalyze_NotFound(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)

	_, err := NewService(store).Analyze("character:a", "character:ghost")
	if narraerr.KindOf(err) != narraerr.KindNotFound {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindNotFound)
	}
}

func TestHotspots_OrderedBySeverity(t *testing.T) {
	store := newTestStore(t)
	saveCharacter(t, store, "character:a", "Ada", nil)
	saveCharacter(t, store, "character:b", "Bruno", map[string][]string{
		models.TraitDesireConscious: {"inherit the vineyard"},
	})
	saveCharacter(t, store, "character:c", "Cai", map[string][]string{
		models.TraitDesireConscious: {"buy the vineyard outright"},
	})
	shareKnowledge(t, store, "knowledge:will", "the will names a secret heir", map[string]models.Certainty{
		"character:a": models.CertaintyKnows,
		"character:b": models.CertaintyBelievesWrongly,
	})

	hotspots, err := NewService(store).Hotspots(10)
	if err != nil {
		t.Fatalf("Hotspots() failed: %v", err)
	}
	if len(hotspots) != 2 {
		t.Fatalf("got %d hotspots, want 2", len(hotspots))
	}
	if hotspots[0].Severity < hotspots[1].Severity {
		t.Errorf("hotspots not sorted: %f before %f", hotspots[0].Severity, hotspots[1].Severity)
	}
	// The knowledge contradiction (0.9) outranks the shared desire (0.7)
	if hotspots[0].CharacterA != "character:a" || hotspots[0].CharacterB != "character:b" {
		t.Errorf("top hotspot = %s/%s, want character:a/character:b",
			hotspots[0].CharacterA, hotspots[0].CharacterB)
	}

	limited, err := NewService(store).Hotspots(1)
	if err != nil {
		t.Fatalf("Hotspots(1) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d hotspots with limit 1, want 1", len(limited))
	}
}

// ABOUTME: Tests for consistency checking against universe facts
// ABOUTME: Keyword heuristics, scopes, structural checks, and the draft gate
package consistency

import (
	"context"
	"strings"
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

func saveFact(t *testing.T, store *storage.Storage, f *models.UniverseFact) {
	t.Helper()
	if err := store.Facts.Save(f); err != nil {
		t.Fatalf("Save(%s) failed: %v", f.ID, err)
	}
}

func strictFact(id, title string) *models.UniverseFact {
	return &models.UniverseFact{ID: id, Title: title, EnforcementLevel: models.EnforcementStrict}
}

func TestCheckDraft_ProhibitiveFactBlocks(t *testing.T) {
	store := newTestStore(t)
	saveFact(t, store, strictFact("fact:guns", "No firearms"))

	violations, err := NewService(store).CheckDraft(
		models.TypeCharacter, "character:new", "",
		"A smuggler who deals in firearms across the straits.")
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	v := violations[0]
	if v.Severity != SeverityCritical {
		t.Errorf("Severity = %s, want %s", v.Severity, SeverityCritical)
	}
	if v.Confidence <= 0.5 {
		t.Errorf("Confidence = %f, want > 0.5", v.Confidence)
	}
	if !HasCritical(violations) {
		t.Error("HasCritical() = false, want true")
	}
}

func TestCheckDraft_NegatedMentionPasses(t *testing.T) {
	store := newTestStore(t)
	saveFact(t, store, strictFact("fact:guns", "No firearms"))

	violations, err := NewService(store).CheckDraft(
		models.TypeCharacter, "character:new", "",
		"A border guard who carries no firearms on principle.")
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("got %d violations, want 0 for a negated mention", len(violations))
	}
}

func TestCheckDraft_DeclarativeFactViolatedByNegation(t *testing.T) {
	store := newTestStore(t)
	saveFact(t, store, strictFact("fact:magic", "Magic exists"))

	violations, err := NewService(store).CheckDraft(
		models.TypeLocation, "location:valley", "",
		"A quiet valley where there is no magic at all.")
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Severity != SeverityCritical {
		t.Errorf("Severity = %s, want %s", violations[0].Severity, SeverityCritical)
	}

	// A plain affirming mention is fine
	violations, err = NewService(store).CheckDraft(
		models.TypeLocation, "location:grove", "",
		"A grove humming with old magic.")
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("got %d violations for an affirming mention, want 0", len(violations))
	}
}

func TestCheckDraft_KnowledgeIsDramaticIrony(t *testing.T) {
	store := newTestStore(t)
	saveFact(t, store, strictFact("fact:guns", "No firearms"))

	violations, err := NewService(store).CheckDraft(
		models.TypeKnowledge, "knowledge:k1", "character:a",
		"The duke keeps firearms hidden under the chapel.")
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	v := violations[0]
	if !v.Intentional {
		t.Error("Intentional = false, want true for character knowledge")
	}
	if v.Severity != SeverityInfo {
		t.Errorf("Severity = %s, want %s", v.Severity, SeverityInfo)
	}
	if HasCritical(violations) {
		t.Error("HasCritical() = true, dramatic irony must not block")
	}
}

func TestCheckDraft_WarningLevelNeverCritical(t *testing.T) {
	store := newTestStore(t)
	f := strictFact("fact:guns", "No firearms")
	f.EnforcementLevel = models.EnforcementWarning
	saveFact(t, store, f)
	// Warning facts are not applied globally, so link it to the draft
	err := store.Facts.Link(&models.FactLink{FactID: f.ID, EntityID: "character:new", LinkType: "manual"})
	if err != nil {
		t.Fatalf("Link() failed: %v", err)
	}

	violations, err := NewService(store).CheckDraft(
		models.TypeCharacter, "character:new", "",
		"A gunsmith hoarding firearms in the cellar.")
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Severity != SeverityWarning {
		t.Errorf("Severity = %s, want %s", violations[0].Severity, SeverityWarning)
	}
	if HasCritical(violations) {
		t.Error("HasCritical() = true for a warning, want false")
	}
}

func TestCheckDraft_PovScope(t *testing.T) {
	store := newTestStore(t)
	f := strictFact("fact:oath", "No weapons")
	f.Scope = &models.FactScope{
		Pov: &models.PovScope{Kind: models.PovCharacter, CharacterID: "character:monk"},
	}
	saveFact(t, store, f)

	svc := NewService(store)
	text := "Keeps weapons oiled and ready."

	violations, err := svc.CheckDraft(models.TypeKnowledge, "knowledge:k1", "character:soldier", text)
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("got %d violations for out-of-scope character, want 0", len(violations))
	}

	violations, err = svc.CheckDraft(models.TypeKnowledge, "knowledge:k2", "character:monk", text)
	if err != nil {
		t.Fatalf("CheckDraft() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Errorf("got %d violations for the scoped character, want 1", len(violations))
	}
}

func TestCheckAll_TemporalScope(t *testing.T) {
	store := newTestStore(t)
	for _, ev := range []*models.Event{
		{ID: "event:smuggle", Title: "Smugglers traded firearms openly", Sequence: 2},
		{ID: "event:law", Title: "The new edict takes effect", Sequence: 5},
		{ID: "event:raid", Title: "Guards seized firearms at the gate", Sequence: 6},
	} {
		if err := store.Events.Save(ev); err != nil {
			t.Fatalf("Save(%s) failed: %v", ev.ID, err)
		}
	}
	f := strictFact("fact:guns", "No firearms")
	f.Scope = &models.FactScope{
		Temporal: &models.TemporalScope{ValidFromEventID: "event:law"},
	}
	saveFact(t, store, f)

	report, err := NewService(store).CheckAll(context.Background())
	if err != nil {
		t.Fatalf("CheckAll() failed: %v", err)
	}

	flagged := map[string]bool{}
	for _, v := range report.Violations {
		flagged[v.EntityID] = true
	}
	if flagged["event:smuggle"] {
		t.Error("event before the fact window was flagged")
	}
	if !flagged["event:raid"] {
		t.Errorf("event inside the fact window was not flagged; violations = %+v", report.Violations)
	}
	if report.CheckedFacts != 1 {
		t.Errorf("CheckedFacts = %d, want 1", report.CheckedFacts)
	}
}

func TestCheckAll_TimelineViolation(t *testing.T) {
	store := newTestStore(t)
	err := store.Characters.Save(&models.Character{ID: "character:iris", Name: "Iris"})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	for _, ev := range []*models.Event{
		{ID: "event:banquet", Title: "The banquet", Sequence: 1},
		{ID: "event:confession", Title: "The confession", Sequence: 5},
	} {
		if err := store.Events.Save(ev); err != nil {
			t.Fatalf("Save(%s) failed: %v", ev.ID, err)
		}
	}
	sc := &models.Scene{
		ID:      "scene:toast",
		Title:   "The toast",
		Summary: "Iris warns the table away from the poisoned wine.",
		EventID: "event:banquet",
	}
	if err := store.Scenes.Save(sc); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	err = store.Scenes.AddParticipant(&models.SceneParticipant{
		CharacterID: "character:iris", SceneID: sc.ID,
	})
	if err != nil {
		t.Fatalf("AddParticipant() failed: %v", err)
	}

	k := &models.Knowledge{ID: "knowledge:wine", CharacterID: "character:iris", Fact: "the wine is poisoned"}
	if err := store.Knowledge.Save(k); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	// She learns it at the later event, yet acts on it at the banquet
	err = store.Knowledge.AppendEdge(&models.KnowledgeEdge{
		ID: "knowledge_edge:1", CharacterID: "character:iris", KnowledgeID: k.ID,
		Certainty: models.CertaintyKnows, EventID: "event:confession",
	})
	if err != nil {
		t.Fatalf("AppendEdge() failed: %v", err)
	}

	report, err := NewService(store).CheckAll(context.Background())
	if err != nil {
		t.Fatalf("CheckAll() failed: %v", err)
	}
	found := false
	for _, v := range report.Violations {
		if v.EntityID == sc.ID && strings.Contains(v.Message, "before learning") {
			found = true
			if v.Severity != SeverityWarning {
				t.Errorf("Severity = %s, want %s", v.Severity, SeverityWarning)
			}
		}
	}
	if !found {
		t.Errorf("no timeline violation reported; violations = %+v", report.Violations)
	}
}

func TestCheckAll_CircularHierarchy(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"character:a", "character:b"} {
		if err := store.Characters.Save(&models.Character{ID: id, Name: id}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	for i, pair := range [][2]string{{"character:a", "character:b"}, {"character:b", "character:a"}} {
		err := store.Perceptions.SaveRelationship(&models.Relationship{
			ID: "relationship:" + string(rune('1'+i)), FromID: pair[0], ToID: pair[1], RelType: "parent",
		})
		if err != nil {
			t.Fatalf("SaveRelationship() failed: %v", err)
		}
	}

	report, err := NewService(store).CheckAll(context.Background())
	if err != nil {
		t.Fatalf("CheckAll() failed: %v", err)
	}
	circular := 0
	for _, v := range report.Violations {
		if strings.Contains(v.Message, "circular") {
			circular++
		}
	}
	if circular != 1 {
		t.Errorf("got %d circular violations, want exactly 1 (pair reported once)", circular)
	}
}

func TestCheckAll_UnreciprocatedFeelings(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"character:a", "character:b"} {
		if err := store.Characters.Save(&models.Character{ID: id, Name: id}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	err := store.Perceptions.SavePerception(&models.Perception{
		ID: "perception:1", ObserverID: "character:a", TargetID: "character:b",
		Feelings: "quiet devotion",
	})
	if err != nil {
		t.Fatalf("SavePerception() failed: %v", err)
	}

	report, err := NewService(store).CheckAll(context.Background())
	if err != nil {
		t.Fatalf("CheckAll() failed: %v", err)
	}
	found := false
	for _, v := range report.Violations {
		if strings.Contains(v.Message, "unreciprocated") {
			found = true
			if v.Severity != SeverityInfo {
				t.Errorf("Severity = %s, want %s without family ties", v.Severity, SeverityInfo)
			}
		}
	}
	if !found {
		t.Errorf("no asymmetry violation; violations = %+v", report.Violations)
	}
}

func TestCheckEntity(t *testing.T) {
	store := newTestStore(t)
	saveFact(t, store, strictFact("fact:guns", "No firearms"))
	err := store.Characters.Save(&models.Character{
		ID: "character:cole", Name: "Cole",
		Description: "Runs firearms through the harbor at night.",
	})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	violations, err := NewService(store).CheckEntity(context.Background(), "character:cole")
	if err != nil {
		t.Fatalf("CheckEntity() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Errorf("got %d violations, want 1", len(violations))
	}

	_, err = NewService(store).CheckEntity(context.Background(), "character:ghost")
	if narraerr.KindOf(err) != narraerr.KindNotFound {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindNotFound)
	}
}

func TestCheckEntity_HonorsDeadline(t *testing.T) {
	store := newTestStore(t)
	saveFact(t, store, strictFact("fact:guns", "No firearms"))
	err := store.Characters.Save(&models.Character{
		ID: "character:cole", Name: "Cole",
		Description: "Runs firearms through the harbor at night.",
	})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewService(store).CheckEntity(ctx, "character:cole")
	if !narraerr.Is(err, narraerr.KindTimedOut) {
		t.Errorf("CheckEntity() error = %v, want timed_out past the deadline", err)
	}
}

func TestHasCritical(t *testing.T) {
	if HasCritical(nil) {
		t.Error("HasCritical(nil) = true")
	}
	if HasCritical([]Violation{{Severity: SeverityWarning}}) {
		t.Error("warning counted as critical")
	}
	if HasCritical([]Violation{{Severity: SeverityCritical, Intentional: true}}) {
		t.Error("intentional critical should not block")
	}
	if !HasCritical([]Violation{{Severity: SeverityInfo}, {Severity: SeverityCritical}}) {
		t.Error("critical violation missed")
	}
}

func TestProhibits(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"No firearms", true},
		{"There is no king", true},
		{"Magic exists", false},
		{"Nobody leaves the valley", false},
	}
	for _, tt := range tests {
		f := &models.UniverseFact{Title: tt.title}
		if got := prohibits(f); got != tt.want {
			t.Errorf("prohibits(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestFactKeywords(t *testing.T) {
	f := &models.UniverseFact{
		Title:       "No magic inside the city walls",
		Description: "The wards fail beyond the walls.",
	}
	got := factKeywords(f)
	seen := map[string]bool{}
	for _, w := range got {
		if seen[w] {
			t.Errorf("duplicate keyword %q", w)
		}
		seen[w] = true
	}
	for _, want := range []string{"magic", "city", "walls", "wards"} {
		if !seen[want] {
			t.Errorf("keywords = %v, missing %q", got, want)
		}
	}
	for _, reject := range []string{"no", "the"} {
		if seen[reject] {
			t.Errorf("keywords = %v, must not contain %q", got, reject)
		}
	}
}

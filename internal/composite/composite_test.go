// ABOUTME: Tests for deterministic composite text rendering
// ABOUTME: Character composites fold in profile traits and knowledge edges
package composite

import (
	"strings"
	"testing"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
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

func TestRenderCharacter(t *testing.T) {
	store := newTestStore(t)
	r := NewRenderer(store)

	c := &models.Character{
		ID:          "character:ada",
		Name:        "Ada",
		Aliases:     []string{"The Cartographer"},
		Roles:       []string{"navigator"},
		Description: "She maps the coastline from memory.",
		Profile: map[string][]string{
			models.TraitWound: {"lost her ship in the strait"},
		},
	}
	if err := store.Characters.Save(c); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	k := &models.Knowledge{ID: "knowledge:reef", CharacterID: c.ID, Fact: "the reef shifts at low tide"}
	if err := store.Knowledge.Save(k); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Knowledge.AppendEdge(&models.KnowledgeEdge{
		ID: "knowledge_edge:reef-a", CharacterID: c.ID, KnowledgeID: k.ID, Certainty: models.CertaintyKnows,
	}); err != nil {
		t.Fatalf("AppendEdge() failed: %v", err)
	}

	text, err := r.Render(models.TypeCharacter, c.ID)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	for _, want := range []string{
		"Ada is a character who is a navigator.",
		"Also known as The Cartographer.",
		"She maps the coastline from memory.",
		"lost her ship in the strait",
		"Ada knows that the reef shifts at low tide.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("composite missing %q:\n%s", want, text)
		}
	}

	// Same inputs must render the same bytes
	again, err := r.Render(models.TypeCharacter, c.ID)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if text != again {
		t.Error("composite text is not deterministic")
	}
}

func TestRenderCharacter_NotFound(t *testing.T) {
	store := newTestStore(t)
	r := NewRenderer(store)

	_, err := r.Render(models.TypeCharacter, "character:ghost")
	if !narraerr.Is(err, narraerr.KindNotFound) {
		t.Errorf("Render() error = %v, want not_found", err)
	}
}

func TestRender_UnsupportedType(t *testing.T) {
	store := newTestStore(t)
	r := NewRenderer(store)

	_, err := r.Render(models.EntityType("phase"), "phase:act_one")
	if !narraerr.Is(err, narraerr.KindValidation) {
		t.Errorf("Render() error = %v, want validation", err)
	}
}

func TestKnowledgePhrase(t *testing.T) {
	tests := []struct {
		certainty models.Certainty
		want      string
	}{
		{models.CertaintyKnows, "Ada knows that the king is dead."},
		{models.CertaintySuspects, "Ada suspects that the king is dead."},
		{models.CertaintyBelievesWrongly, "Ada wrongly believes that the king is dead."},
		{models.CertaintyDenies, "Ada denies that the king is dead."},
		{models.CertaintyUncertain, "Ada is uncertain whether the king is dead."},
		{models.CertaintyUnknown, "Ada assumes that the king is dead."},
	}
	for _, tt := range tests {
		// A trailing period on the fact must not double up
		if got := KnowledgePhrase("Ada", tt.certainty, "the king is dead."); got != tt.want {
			t.Errorf("KnowledgePhrase(%s) = %q, want %q", tt.certainty, got, tt.want)
		}
	}
}

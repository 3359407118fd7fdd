// ABOUTME: Tests for the storage facade
// ABOUTME: Name resolution, protection flags, and cross-table delete cleanup
package storage

import (
	"testing"

	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	store, err := OpenInMemory(4)
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEntityName(t *testing.T) {
	store := newTestStore(t)

	if err := store.Characters.Save(&models.Character{ID: "character:ada", Name: "Ada"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Events.Save(&models.Event{ID: "event:siege", Title: "The siege", Sequence: 1}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	tests := []struct {
		id   string
		want string
	}{
		{"character:ada", "Ada"},
		{"event:siege", "The siege"},
	}
	for _, tt := range tests {
		name, err := store.EntityName(ids.MustParse(tt.id))
		if err != nil {
			t.Fatalf("EntityName(%s) failed: %v", tt.id, err)
		}
		if name != tt.want {
			t.Errorf("EntityName(%s) = %q, want %q", tt.id, name, tt.want)
		}
	}

	_, err := store.EntityName(ids.MustParse("character:ghost"))
	if !narraerr.Is(err, narraerr.KindNotFound) {
		t.Errorf("EntityName(ghost) error = %v, want not_found", err)
	}
}

func TestEntityNameOrID(t *testing.T) {
	store := newTestStore(t)

	if err := store.Characters.Save(&models.Character{ID: "character:ada", Name: "Ada"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if got := store.EntityNameOrID("character:ada"); got != "Ada" {
		t.Errorf("EntityNameOrID() = %q, want Ada", got)
	}
	if got := store.EntityNameOrID("character:ghost"); got != "character:ghost" {
		t.Errorf("EntityNameOrID() = %q, want the raw id back", got)
	}
	if got := store.EntityNameOrID("not an id"); got != "not an id" {
		t.Errorf("EntityNameOrID() = %q, want the unparseable input back", got)
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)

	if err := store.Characters.Save(&models.Character{ID: "character:ada", Name: "Ada"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	ok, err := store.Exists(ids.MustParse("character:ada"))
	if err != nil || !ok {
		t.Errorf("Exists(ada) = %v, %v, want true", ok, err)
	}
	ok, err = store.Exists(ids.MustParse("character:ghost"))
	if err != nil || ok {
		t.Errorf("Exists(ghost) = %v, %v, want false", ok, err)
	}
}

func TestDeleteEntity_Protection(t *testing.T) {
	store := newTestStore(t)

	if err := store.Characters.Save(&models.Character{ID: "character:ada", Name: "Ada"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	id := ids.MustParse("character:ada")
	if err := store.SetProtected(id, true); err != nil {
		t.Fatalf("SetProtected() failed: %v", err)
	}

	err := store.DeleteEntity(id, false)
	if !narraerr.Is(err, narraerr.KindConflict) {
		t.Fatalf("DeleteEntity() error = %v, want conflict while protected", err)
	}

	if err := store.DeleteEntity(id, true); err != nil {
		t.Fatalf("DeleteEntity(force) failed: %v", err)
	}
	c, err := store.Characters.GetByID("character:ada")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if c != nil {
		t.Error("character survived a forced delete")
	}
}

func TestDeleteEntity_CleansUpReferences(t *testing.T) {
	store := newTestStore(t)

	if err := store.Characters.Save(&models.Character{ID: "character:ada", Name: "Ada"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	vec := []float32{1, 0, 0, 0}
	if err := store.Embeddings.SetEmbedding(models.TypeCharacter, "character:ada", vec, "Ada"); err != nil {
		t.Fatalf("SetEmbedding() failed: %v", err)
	}
	if err := store.Facts.Save(&models.UniverseFact{ID: "fact:iron", Title: "No iron weapons"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Facts.Link(&models.FactLink{FactID: "fact:iron", EntityID: "character:ada"}); err != nil {
		t.Fatalf("Link() failed: %v", err)
	}
	if err := store.Snapshots.Append(&models.ArcSnapshot{
		ID: "snapshot:1", EntityID: "character:ada", EntityType: "character", Embedding: vec,
	}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if err := store.DeleteEntity(ids.MustParse("character:ada"), false); err != nil {
		t.Fatalf("DeleteEntity() failed: %v", err)
	}

	matches, err := store.Vectors.Search(vec, 5, []models.EntityType{models.TypeCharacter})
	if err != nil {
		t.Fatalf("Vectors.Search() failed: %v", err)
	}
	for _, m := range matches {
		if m.EntityID == "character:ada" {
			t.Error("vector row survived the delete")
		}
	}

	links, err := store.Facts.Links("fact:iron")
	if err != nil {
		t.Fatalf("Links() failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("got %d fact links after delete, want 0", len(links))
	}

	snaps, err := store.Snapshots.History("character:ada")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("got %d snapshots after delete, want 0", len(snaps))
	}

	hits, err := store.Search.Search("Ada", nil, 5, 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d keyword hits after delete, want 0", len(hits))
	}
}

func TestDeleteEntity_LocationWithPrimaryScenes(t *testing.T) {
	store := newTestStore(t)

	if err := store.Locations.Save(&models.Location{ID: "location:keep", Name: "The Keep"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Events.Save(&models.Event{ID: "event:siege", Title: "The siege", Sequence: 1}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Scenes.Save(&models.Scene{
		ID: "scene:gate", Title: "At the gate", EventID: "event:siege",
		PrimaryLocationID: "location:keep",
	}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	err := store.DeleteEntity(ids.MustParse("location:keep"), false)
	if !narraerr.Is(err, narraerr.KindReferential) {
		t.Fatalf("DeleteEntity() error = %v, want referential with a primary scene", err)
	}
	l, err := store.Locations.GetByID("location:keep")
	if err != nil || l == nil {
		t.Fatal("location should survive a rejected delete")
	}
}

func TestDeleteEntity_LocationWithChildren(t *testing.T) {
	store := newTestStore(t)

	if err := store.Locations.Save(&models.Location{ID: "location:keep", Name: "The Keep"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Locations.Save(&models.Location{
		ID: "location:tower", Name: "North Tower", ParentID: "location:keep",
	}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	err := store.DeleteEntity(ids.MustParse("location:keep"), false)
	if !narraerr.Is(err, narraerr.KindReferential) {
		t.Fatalf("DeleteEntity() error = %v, want referential with a child location", err)
	}

	// The leaf deletes fine, then the parent does too
	if err := store.DeleteEntity(ids.MustParse("location:tower"), false); err != nil {
		t.Fatalf("DeleteEntity(tower) failed: %v", err)
	}
	if err := store.DeleteEntity(ids.MustParse("location:keep"), false); err != nil {
		t.Fatalf("DeleteEntity(keep) failed: %v", err)
	}
}

func TestDeleteEntity_LocationUnsetsSecondaryReferences(t *testing.T) {
	store := newTestStore(t)

	if err := store.Locations.Save(&models.Location{ID: "location:dock", Name: "The Dock"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Events.Save(&models.Event{ID: "event:arrival", Title: "The arrival", Sequence: 1}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Scenes.Save(&models.Scene{
		ID: "scene:landing", Title: "The landing", EventID: "event:arrival",
		SecondaryLocations: []string{"location:dock", "location:elsewhere"},
	}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if err := store.DeleteEntity(ids.MustParse("location:dock"), false); err != nil {
		t.Fatalf("DeleteEntity() failed: %v", err)
	}

	sc, err := store.Scenes.GetByID("scene:landing")
	if err != nil || sc == nil {
		t.Fatalf("GetByID() = %v, %v", sc, err)
	}
	for _, id := range sc.SecondaryLocations {
		if id == "location:dock" {
			t.Errorf("SecondaryLocations = %v, deleted location still referenced", sc.SecondaryLocations)
		}
	}
	if len(sc.SecondaryLocations) != 1 || sc.SecondaryLocations[0] != "location:elsewhere" {
		t.Errorf("SecondaryLocations = %v, want [location:elsewhere]", sc.SecondaryLocations)
	}
}

func TestDeleteEntity_UnknownType(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteEntity(ids.MustParse("phase:act_one"), false)
	if !narraerr.Is(err, narraerr.KindValidation) {
		t.Errorf("DeleteEntity() error = %v, want validation", err)
	}
}

func TestSetProtected_UnsupportedType(t *testing.T) {
	store := newTestStore(t)

	err := store.SetProtected(ids.MustParse("note:reminder"), true)
	if !narraerr.Is(err, narraerr.KindValidation) {
		t.Errorf("SetProtected() error = %v, want validation", err)
	}
}

func TestResolveCharacter(t *testing.T) {
	store := newTestStore(t)

	if err := store.Characters.Save(&models.Character{
		ID: "character:ada", Name: "Ada", Aliases: []string{"The Cartographer"},
	}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	byID, err := store.ResolveCharacter("character:ada")
	if err != nil || byID.Name != "Ada" {
		t.Errorf("ResolveCharacter(id) = %v, %v, want Ada", byID, err)
	}
	byName, err := store.ResolveCharacter("Ada")
	if err != nil || byName.ID != "character:ada" {
		t.Errorf("ResolveCharacter(name) = %v, %v, want character:ada", byName, err)
	}

	_, err = store.ResolveCharacter("character:ghost")
	if !narraerr.Is(err, narraerr.KindNotFound) {
		t.Errorf("ResolveCharacter(ghost) error = %v, want not_found", err)
	}
	_, err = store.ResolveCharacter("Nobody")
	if !narraerr.Is(err, narraerr.KindNotFound) {
		t.Errorf("ResolveCharacter(Nobody) error = %v, want not_found", err)
	}
}

// ABOUTME: Unified Storage facade wrapping all SQLite stores
// ABOUTME: Enforces delete policies, protection flags, and index cleanup
package storage

import (
	"fmt"
	"strings"

	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage/sqlite"
)

// Storage bundles all stores behind one handle
type Storage struct {
	db *sqlite.DB

	Characters  *sqlite.CharacterStore
	Locations   *sqlite.LocationStore
	Events      *sqlite.EventStore
	Scenes      *sqlite.SceneStore
	Knowledge   *sqlite.KnowledgeStore
	Notes       *sqlite.NoteStore
	Facts       *sqlite.FactStore
	Perceptions *sqlite.PerceptionStore
	Phases      *sqlite.PhaseStore
	Snapshots   *sqlite.SnapshotStore
	Annotations *sqlite.AnnotationStore
	Embeddings  *sqlite.EmbeddingStore
	Vectors     *sqlite.VectorStore
	Search      *sqlite.SearchStore
}

// Open opens file-backed storage
func Open(path string, dim int) (*Storage, error) {
	db, err := sqlite.Open(path, dim)
	if err != nil {
		return nil, err
	}
	return wrap(db), nil
}

// OpenInMemory opens in-memory storage (for testing)
func OpenInMemory(dim int) (*Storage, error) {
	db, err := sqlite.OpenInMemory(dim)
	if err != nil {
		return nil, err
	}
	return wrap(db), nil
}

func wrap(db *sqlite.DB) *Storage {
	search := sqlite.NewSearchStore(db)
	vectors := sqlite.NewVectorStore(db)
	return &Storage{
		db:          db,
		Characters:  sqlite.NewCharacterStore(db, search),
		Locations:   sqlite.NewLocationStore(db, search),
		Events:      sqlite.NewEventStore(db, search),
		Scenes:      sqlite.NewSceneStore(db, search),
		Knowledge:   sqlite.NewKnowledgeStore(db, search),
		Notes:       sqlite.NewNoteStore(db, search),
		Facts:       sqlite.NewFactStore(db, search),
		Perceptions: sqlite.NewPerceptionStore(db, search),
		Phases:      sqlite.NewPhaseStore(db),
		Snapshots:   sqlite.NewSnapshotStore(db),
		Annotations: sqlite.NewAnnotationStore(db),
		Embeddings:  sqlite.NewEmbeddingStore(db, vectors),
		Vectors:     vectors,
		Search:      search,
	}
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the raw database handle for advanced queries
func (s *Storage) DB() *sqlite.DB {
	return s.db
}

// Dimension returns the embedding dimension of the vector index
func (s *Storage) Dimension() int {
	return s.db.Dimension()
}

// EntityName resolves a typed ID to a human-readable name. Falls back to
// the raw key for types without one.
func (s *Storage) EntityName(id ids.EntityID) (string, error) {
	switch models.EntityType(id.Table) {
	case models.TypeCharacter:
		c, err := s.Characters.GetByID(id.String())
		if err != nil || c == nil {
			return "", orNotFound(err, id)
		}
		return c.Name, nil
	case models.TypeLocation:
		l, err := s.Locations.GetByID(id.String())
		if err != nil || l == nil {
			return "", orNotFound(err, id)
		}
		return l.Name, nil
	case models.TypeEvent:
		e, err := s.Events.GetByID(id.String())
		if err != nil || e == nil {
			return "", orNotFound(err, id)
		}
		return e.Title, nil
	case models.TypeScene:
		sc, err := s.Scenes.GetByID(id.String())
		if err != nil || sc == nil {
			return "", orNotFound(err, id)
		}
		return sc.Title, nil
	case models.TypeKnowledge:
		k, err := s.Knowledge.GetByID(id.String())
		if err != nil || k == nil {
			return "", orNotFound(err, id)
		}
		return k.Fact, nil
	case models.TypeNote:
		n, err := s.Notes.GetByID(id.String())
		if err != nil || n == nil {
			return "", orNotFound(err, id)
		}
		return n.Title, nil
	case models.TypeFact:
		f, err := s.Facts.GetByID(id.String())
		if err != nil || f == nil {
			return "", orNotFound(err, id)
		}
		return f.Title, nil
	default:
		return id.Key, nil
	}
}

// EntityNameOrID resolves a raw typed ID to a name, falling back to the
// raw ID when resolution fails.
func (s *Storage) EntityNameOrID(raw string) string {
	id, err := ids.Parse(raw)
	if err != nil {
		return raw
	}
	name, err := s.EntityName(id)
	if err != nil || name == "" {
		return raw
	}
	return name
}

// Exists reports whether a typed ID resolves to a stored row
func (s *Storage) Exists(id ids.EntityID) (bool, error) {
	_, err := s.EntityName(id)
	if narraerr.Is(err, narraerr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteEntity deletes any entity by typed ID, honoring protection flags
// and cleaning up the polymorphic side tables. force overrides protection.
func (s *Storage) DeleteEntity(id ids.EntityID, force bool) error {
	raw := id.String()

	protected, err := s.isProtected(id)
	if err != nil {
		return err
	}
	if protected && !force {
		return narraerr.New(narraerr.KindConflict, "%s is protected; pass force to delete", raw)
	}

	switch models.EntityType(id.Table) {
	case models.TypeCharacter:
		err = s.Characters.Delete(raw)
	case models.TypeLocation:
		err = s.deleteLocation(raw)
	case models.TypeEvent:
		err = s.Events.Delete(raw)
	case models.TypeScene:
		err = s.Scenes.Delete(raw)
	case models.TypeKnowledge:
		err = s.Knowledge.Delete(raw)
	case models.TypeNote:
		err = s.Notes.Delete(raw)
	case models.TypeFact:
		err = s.Facts.Delete(raw)
	case models.TypePerception:
		err = s.Perceptions.DeletePerception(raw)
	case models.TypeRelationship:
		err = s.Perceptions.DeleteRelationship(raw)
	default:
		return narraerr.Validation("cannot delete entity type %q", id.Table)
	}
	if err != nil {
		return err
	}

	return s.cleanupReferences(raw)
}

// deleteLocation refuses to delete a location that scenes or child
// locations still depend on. Secondary scene references are unset
// rather than blocking the delete.
func (s *Storage) deleteLocation(locationID string) error {
	scenes, err := s.Scenes.ListByLocation(locationID)
	if err != nil {
		return err
	}
	if len(scenes) > 0 {
		return narraerr.New(narraerr.KindReferential,
			"%s is the primary location of %d scene(s); reassign them first",
			locationID, len(scenes))
	}
	children, err := s.Locations.Children(locationID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return narraerr.New(narraerr.KindReferential,
			"%s contains %d child location(s); move or delete them first",
			locationID, len(children))
	}
	if err := s.Locations.Delete(locationID); err != nil {
		return err
	}
	return s.Scenes.RemoveSecondaryLocation(locationID)
}

// cleanupReferences removes rows in the polymorphic side tables that
// reference a deleted entity. These have no foreign keys to cascade.
func (s *Storage) cleanupReferences(entityID string) error {
	if err := s.Vectors.Delete(entityID); err != nil {
		return fmt.Errorf("failed to drop vector: %w", err)
	}
	for _, q := range []string{
		`DELETE FROM phase_memberships WHERE entity_id = ?`,
		`DELETE FROM fact_links WHERE entity_id = ?`,
		`DELETE FROM note_links WHERE entity_id = ?`,
		`DELETE FROM arc_snapshots WHERE entity_id = ?`,
		`DELETE FROM annotations WHERE entity_id = ?`,
	} {
		if _, err := s.db.Exec(q, entityID); err != nil {
			return fmt.Errorf("failed to clean up references: %w", err)
		}
	}
	return nil
}

// SetProtected toggles deletion protection on a protectable entity
func (s *Storage) SetProtected(id ids.EntityID, protected bool) error {
	switch models.EntityType(id.Table) {
	case models.TypeCharacter:
		return s.Characters.SetProtected(id.String(), protected)
	case models.TypeLocation:
		return s.Locations.SetProtected(id.String(), protected)
	case models.TypeEvent:
		return s.Events.SetProtected(id.String(), protected)
	case models.TypeScene:
		return s.Scenes.SetProtected(id.String(), protected)
	default:
		return narraerr.Validation("entity type %q cannot be protected", id.Table)
	}
}

func (s *Storage) isProtected(id ids.EntityID) (bool, error) {
	switch models.EntityType(id.Table) {
	case models.TypeCharacter:
		c, err := s.Characters.GetByID(id.String())
		if err != nil || c == nil {
			return false, orNotFound(err, id)
		}
		return c.Protected, nil
	case models.TypeLocation:
		l, err := s.Locations.GetByID(id.String())
		if err != nil || l == nil {
			return false, orNotFound(err, id)
		}
		return l.Protected, nil
	case models.TypeEvent:
		e, err := s.Events.GetByID(id.String())
		if err != nil || e == nil {
			return false, orNotFound(err, id)
		}
		return e.Protected, nil
	case models.TypeScene:
		sc, err := s.Scenes.GetByID(id.String())
		if err != nil || sc == nil {
			return false, orNotFound(err, id)
		}
		return sc.Protected, nil
	default:
		return false, nil
	}
}

// ResolveCharacter accepts a typed ID, a bare name, or an alias
func (s *Storage) ResolveCharacter(ref string) (*models.Character, error) {
	if strings.HasPrefix(ref, "character:") {
		c, err := s.Characters.GetByID(ref)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, narraerr.NotFound("character", ref)
		}
		return c, nil
	}
	c, err := s.Characters.GetByName(ref)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, narraerr.NotFound("character", ref)
	}
	return c, nil
}

func orNotFound(err error, id ids.EntityID) error {
	if err != nil {
		return err
	}
	return narraerr.NotFound(id.Table, id.String())
}

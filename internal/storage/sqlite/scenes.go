// ABOUTME: Scene and scene-participation storage operations for SQLite
// ABOUTME: CRUD plus co-occurrence queries used by clustering and analytics
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// SceneStore handles scene and participation persistence
type SceneStore struct {
	db     *DB
	search *SearchStore
}

// NewSceneStore creates a new SceneStore
func NewSceneStore(db *DB, search *SearchStore) *SceneStore {
	return &SceneStore{db: db, search: search}
}

// Save inserts or updates a scene
func (s *SceneStore) Save(sc *models.Scene) error {
	createdAt := sc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO scenes (id, title, summary, event_id, primary_location_id, secondary_locations, protected, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			event_id = excluded.event_id,
			primary_location_id = excluded.primary_location_id,
			secondary_locations = excluded.secondary_locations,
			protected = excluded.protected,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, sc.ID, sc.Title, nullString(sc.Summary), nullString(sc.EventID),
		nullString(sc.PrimaryLocationID), jsonText(sc.SecondaryLocations),
		boolToInt(sc.Protected), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save scene: %w", err)
	}

	return s.search.UpsertDoc(models.TypeScene, sc.ID, sc.Title, sc.Summary)
}

// GetByID retrieves a scene by its ID
func (s *SceneStore) GetByID(id string) (*models.Scene, error) {
	sc, err := scanSceneInto(s.db.QueryRow(sceneSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sc, err
}

// List retrieves all scenes
func (s *SceneStore) List() ([]models.Scene, error) {
	return s.queryScenes(sceneSelect + ` ORDER BY created_at`)
}

// ListByEvent retrieves all scenes anchored to an event
func (s *SceneStore) ListByEvent(eventID string) ([]models.Scene, error) {
	return s.queryScenes(sceneSelect+` WHERE event_id = ? ORDER BY created_at`, eventID)
}

// ListByLocation retrieves all scenes whose primary location matches
func (s *SceneStore) ListByLocation(locationID string) ([]models.Scene, error) {
	return s.queryScenes(sceneSelect+` WHERE primary_location_id = ? ORDER BY created_at`, locationID)
}

// RemoveSecondaryLocation strips a location from the secondary location
// list of every scene that references it.
func (s *SceneStore) RemoveSecondaryLocation(locationID string) error {
	scenes, err := s.List()
	if err != nil {
		return err
	}
	for i := range scenes {
		sc := &scenes[i]
		kept := make([]string, 0, len(sc.SecondaryLocations))
		for _, id := range sc.SecondaryLocations {
			if id != locationID {
				kept = append(kept, id)
			}
		}
		if len(kept) == len(sc.SecondaryLocations) {
			continue
		}
		_, err := s.db.Exec(`
			UPDATE scenes SET secondary_locations = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, jsonText(kept), sc.ID)
		if err != nil {
			return fmt.Errorf("failed to unset secondary location: %w", err)
		}
	}
	return nil
}

// Delete removes a scene; participations cascade
func (s *SceneStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM scenes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// SetProtected toggles deletion protection
func (s *SceneStore) SetProtected(id string, protected bool) error {
	res, err := s.db.Exec(`UPDATE scenes SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddParticipant records a character's participation in a scene
func (s *SceneStore) AddParticipant(p *models.SceneParticipant) error {
	_, err := s.db.Exec(`
		INSERT INTO scene_participants (character_id, scene_id, role, notes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(character_id, scene_id) DO UPDATE SET
			role = excluded.role,
			notes = excluded.notes
	`, p.CharacterID, p.SceneID, nullString(p.Role), nullString(p.Notes))
	if err != nil {
		return fmt.Errorf("failed to save scene participation: %w", err)
	}
	return nil
}

// RemoveParticipant deletes one participation edge
func (s *SceneStore) RemoveParticipant(characterID, sceneID string) error {
	_, err := s.db.Exec(`DELETE FROM scene_participants WHERE character_id = ? AND scene_id = ?`, characterID, sceneID)
	return err
}

// Participants lists the participation edges of a scene
func (s *SceneStore) Participants(sceneID string) ([]models.SceneParticipant, error) {
	return s.queryParticipants(`
		SELECT character_id, scene_id, role, notes FROM scene_participants
		WHERE scene_id = ?`, sceneID)
}

// ScenesOf lists scene IDs a character participates in
func (s *SceneStore) ScenesOf(characterID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT scene_id FROM scene_participants WHERE character_id = ?`, characterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AllParticipants lists every participation edge, scene-grouped
func (s *SceneStore) AllParticipants() ([]models.SceneParticipant, error) {
	return s.queryParticipants(`
		SELECT character_id, scene_id, role, notes FROM scene_participants
		ORDER BY scene_id`)
}

// SharedScenes counts scenes where both characters participate
func (s *SceneStore) SharedScenes(a, b string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM scene_participants p1
		JOIN scene_participants p2 ON p1.scene_id = p2.scene_id
		WHERE p1.character_id = ? AND p2.character_id = ?
	`, a, b).Scan(&n)
	return n, err
}

const sceneSelect = `
	SELECT id, title, summary, event_id, primary_location_id, secondary_locations, protected, embedding, composite_text, embedding_stale, created_at, updated_at
	FROM scenes`

func (s *SceneStore) queryScenes(query string, args ...interface{}) ([]models.Scene, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Scene
	for rows.Next() {
		sc, err := scanSceneInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (s *SceneStore) queryParticipants(query string, args ...interface{}) ([]models.SceneParticipant, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.SceneParticipant
	for rows.Next() {
		var (
			p     models.SceneParticipant
			role  sql.NullString
			notes sql.NullString
		)
		if err := rows.Scan(&p.CharacterID, &p.SceneID, &role, &notes); err != nil {
			return nil, err
		}
		p.Role = role.String
		p.Notes = notes.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSceneInto(sc rowScanner) (*models.Scene, error) {
	var (
		scene     models.Scene
		summary   sql.NullString
		eventID   sql.NullString
		primary   sql.NullString
		secondary sql.NullString
		protected int
		blob      []byte
		composite sql.NullString
		stale     int
	)
	err := sc.Scan(&scene.ID, &scene.Title, &summary, &eventID, &primary, &secondary,
		&protected, &blob, &composite, &stale, &scene.CreatedAt, &scene.UpdatedAt)
	if err != nil {
		return nil, err
	}
	scene.Summary = summary.String
	scene.EventID = eventID.String
	scene.PrimaryLocationID = primary.String
	fromJSONText(secondary, &scene.SecondaryLocations)
	scene.Protected = protected != 0
	scene.Embedding = DecodeVector(blob)
	scene.CompositeText = composite.String
	scene.Stale = stale != 0
	return &scene, nil
}

// ABOUTME: Perceives and relates_to edge storage operations for SQLite
// ABOUTME: Directed character-to-character edges with embedding state
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// PerceptionStore handles perceives and relates_to edges
type PerceptionStore struct {
	db     *DB
	search *SearchStore
}

// NewPerceptionStore creates a new PerceptionStore
func NewPerceptionStore(db *DB, search *SearchStore) *PerceptionStore {
	return &PerceptionStore{db: db, search: search}
}

// SavePerception inserts or updates a perceives edge
func (s *PerceptionStore) SavePerception(p *models.Perception) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO perceptions (id, observer_id, target_id, rel_types, subtype, perception, feelings, tension_level, history_notes, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			observer_id = excluded.observer_id,
			target_id = excluded.target_id,
			rel_types = excluded.rel_types,
			subtype = excluded.subtype,
			perception = excluded.perception,
			feelings = excluded.feelings,
			tension_level = excluded.tension_level,
			history_notes = excluded.history_notes,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, p.ID, p.ObserverID, p.TargetID, jsonText(p.RelTypes), nullString(p.Subtype),
		nullString(p.Perception), nullString(p.Feelings), nullIntPtr(p.TensionLevel),
		nullString(p.HistoryNotes), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save perception: %w", err)
	}
	return nil
}

// GetPerception retrieves a perceives edge by its ID
func (s *PerceptionStore) GetPerception(id string) (*models.Perception, error) {
	p, err := scanPerceptionInto(s.db.QueryRow(perceptionSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPerceptionBetween retrieves the perceives edge observer -> target
func (s *PerceptionStore) GetPerceptionBetween(observerID, targetID string) (*models.Perception, error) {
	p, err := scanPerceptionInto(s.db.QueryRow(
		perceptionSelect+` WHERE observer_id = ? AND target_id = ? ORDER BY created_at DESC LIMIT 1`,
		observerID, targetID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListPerceptionsBy lists perceives edges with the given observer
func (s *PerceptionStore) ListPerceptionsBy(observerID string) ([]models.Perception, error) {
	return s.queryPerceptions(perceptionSelect+` WHERE observer_id = ? ORDER BY created_at`, observerID)
}

// ListPerceptionsOf lists perceives edges with the given target
func (s *PerceptionStore) ListPerceptionsOf(targetID string) ([]models.Perception, error) {
	return s.queryPerceptions(perceptionSelect+` WHERE target_id = ? ORDER BY created_at`, targetID)
}

// ListPerceptions lists every perceives edge
func (s *PerceptionStore) ListPerceptions() ([]models.Perception, error) {
	return s.queryPerceptions(perceptionSelect + ` ORDER BY created_at`)
}

// DeletePerception removes a perceives edge
func (s *PerceptionStore) DeletePerception(id string) error {
	_, err := s.db.Exec(`DELETE FROM perceptions WHERE id = ?`, id)
	return err
}

// SaveRelationship inserts or updates a relates_to edge
func (s *PerceptionStore) SaveRelationship(r *models.Relationship) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO relationships (id, from_id, to_id, rel_type, subtype, label, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			from_id = excluded.from_id,
			to_id = excluded.to_id,
			rel_type = excluded.rel_type,
			subtype = excluded.subtype,
			label = excluded.label,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, r.ID, r.FromID, r.ToID, r.RelType, nullString(r.Subtype), nullString(r.Label), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save relationship: %w", err)
	}
	return nil
}

// GetRelationship retrieves a relates_to edge by its ID
func (s *PerceptionStore) GetRelationship(id string) (*models.Relationship, error) {
	r, err := scanRelationshipInto(s.db.QueryRow(relationshipSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListRelationshipsFrom lists relates_to edges originating at a character
func (s *PerceptionStore) ListRelationshipsFrom(fromID string) ([]models.Relationship, error) {
	return s.queryRelationships(relationshipSelect+` WHERE from_id = ? ORDER BY created_at`, fromID)
}

// ListRelationshipsBetween lists relates_to edges in either direction
func (s *PerceptionStore) ListRelationshipsBetween(a, b string) ([]models.Relationship, error) {
	return s.queryRelationships(relationshipSelect+`
		WHERE (from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)
		ORDER BY created_at`, a, b, b, a)
}

// ListRelationships lists every relates_to edge
func (s *PerceptionStore) ListRelationships() ([]models.Relationship, error) {
	return s.queryRelationships(relationshipSelect + ` ORDER BY created_at`)
}

// DeleteRelationship removes a relates_to edge
func (s *PerceptionStore) DeleteRelationship(id string) error {
	_, err := s.db.Exec(`DELETE FROM relationships WHERE id = ?`, id)
	return err
}

// HasRelType reports whether any edge between the pair carries the substring
// in its rel_type, in either direction.
func (s *PerceptionStore) HasRelType(a, b, substr string) (bool, error) {
	edges, err := s.ListRelationshipsBetween(a, b)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		if strings.Contains(strings.ToLower(e.RelType), strings.ToLower(substr)) {
			return true, nil
		}
	}
	return false, nil
}

const perceptionSelect = `
	SELECT id, observer_id, target_id, rel_types, subtype, perception, feelings, tension_level, history_notes, embedding, composite_text, embedding_stale, created_at, updated_at
	FROM perceptions`

const relationshipSelect = `
	SELECT id, from_id, to_id, rel_type, subtype, label, embedding, composite_text, embedding_stale, created_at, updated_at
	FROM relationships`

func (s *PerceptionStore) queryPerceptions(query string, args ...interface{}) ([]models.Perception, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Perception
	for rows.Next() {
		p, err := scanPerceptionInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PerceptionStore) queryRelationships(query string, args ...interface{}) ([]models.Relationship, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Relationship
	for rows.Next() {
		r, err := scanRelationshipInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanPerceptionInto(sc rowScanner) (*models.Perception, error) {
	var (
		p          models.Perception
		relTypes   sql.NullString
		subtype    sql.NullString
		perception sql.NullString
		feelings   sql.NullString
		tension    sql.NullInt64
		history    sql.NullString
		blob       []byte
		composite  sql.NullString
		stale      int
	)
	err := sc.Scan(&p.ID, &p.ObserverID, &p.TargetID, &relTypes, &subtype, &perception,
		&feelings, &tension, &history, &blob, &composite, &stale, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	fromJSONText(relTypes, &p.RelTypes)
	p.Subtype = subtype.String
	p.Perception = perception.String
	p.Feelings = feelings.String
	if tension.Valid {
		v := int(tension.Int64)
		p.TensionLevel = &v
	}
	p.HistoryNotes = history.String
	p.Embedding = DecodeVector(blob)
	p.CompositeText = composite.String
	p.Stale = stale != 0
	return &p, nil
}

func scanRelationshipInto(sc rowScanner) (*models.Relationship, error) {
	var (
		r         models.Relationship
		subtype   sql.NullString
		label     sql.NullString
		blob      []byte
		composite sql.NullString
		stale     int
	)
	err := sc.Scan(&r.ID, &r.FromID, &r.ToID, &r.RelType, &subtype, &label,
		&blob, &composite, &stale, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Subtype = subtype.String
	r.Label = label.String
	r.Embedding = DecodeVector(blob)
	r.CompositeText = composite.String
	r.Stale = stale != 0
	return &r, nil
}

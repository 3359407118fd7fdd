// ABOUTME: Universe fact and fact-link storage operations for SQLite
// ABOUTME: World rules with enforcement levels and JSON-encoded scopes
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// FactStore handles universe fact persistence
type FactStore struct {
	db     *DB
	search *SearchStore
}

// NewFactStore creates a new FactStore
func NewFactStore(db *DB, search *SearchStore) *FactStore {
	return &FactStore{db: db, search: search}
}

// Save inserts or updates a universe fact
func (s *FactStore) Save(f *models.UniverseFact) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var scope interface{}
	if f.Scope != nil {
		scope = jsonText(f.Scope)
	}

	_, err := s.db.Exec(`
		INSERT INTO universe_facts (id, title, description, categories, enforcement_level, scope, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			categories = excluded.categories,
			enforcement_level = excluded.enforcement_level,
			scope = excluded.scope,
			updated_at = CURRENT_TIMESTAMP
	`, f.ID, f.Title, nullString(f.Description), jsonText(f.Categories),
		string(f.EnforcementLevel), scope, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save universe fact: %w", err)
	}

	return s.search.UpsertDoc(models.TypeFact, f.ID, f.Title, f.Description)
}

// GetByID retrieves a universe fact
func (s *FactStore) GetByID(id string) (*models.UniverseFact, error) {
	f, err := scanFactInto(s.db.QueryRow(factSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// List retrieves all universe facts
func (s *FactStore) List() ([]models.UniverseFact, error) {
	return s.queryFacts(factSelect + ` ORDER BY created_at`)
}

// ListByEnforcement retrieves facts at one enforcement level
func (s *FactStore) ListByEnforcement(level models.EnforcementLevel) ([]models.UniverseFact, error) {
	return s.queryFacts(factSelect+` WHERE enforcement_level = ? ORDER BY created_at`, string(level))
}

// ListByEntity retrieves facts linked to an entity
func (s *FactStore) ListByEntity(entityID string) ([]models.UniverseFact, error) {
	return s.queryFacts(factSelect+`
		WHERE id IN (SELECT fact_id FROM fact_links WHERE entity_id = ?)
		ORDER BY created_at`, entityID)
}

// Delete removes a universe fact; its links cascade
func (s *FactStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM universe_facts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete universe fact: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// Link attaches a fact to an entity it constrains
func (s *FactStore) Link(l *models.FactLink) error {
	_, err := s.db.Exec(`
		INSERT INTO fact_links (fact_id, entity_id, link_type, confidence)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fact_id, entity_id) DO UPDATE SET
			link_type = excluded.link_type,
			confidence = excluded.confidence
	`, l.FactID, l.EntityID, l.LinkType, nullFloatPtr(l.Confidence))
	return err
}

// Unlink detaches a fact from an entity
func (s *FactStore) Unlink(factID, entityID string) error {
	_, err := s.db.Exec(`DELETE FROM fact_links WHERE fact_id = ? AND entity_id = ?`, factID, entityID)
	return err
}

// Links lists the links of a fact
func (s *FactStore) Links(factID string) ([]models.FactLink, error) {
	rows, err := s.db.Query(`
		SELECT fact_id, entity_id, link_type, confidence FROM fact_links WHERE fact_id = ?
	`, factID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.FactLink
	for rows.Next() {
		var (
			l    models.FactLink
			conf sql.NullFloat64
		)
		if err := rows.Scan(&l.FactID, &l.EntityID, &l.LinkType, &conf); err != nil {
			return nil, err
		}
		if conf.Valid {
			v := conf.Float64
			l.Confidence = &v
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// HasLinks reports whether a fact constrains any specific entities
func (s *FactStore) HasLinks(factID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM fact_links WHERE fact_id = ?`, factID).Scan(&n)
	return n > 0, err
}

const factSelect = `
	SELECT id, title, description, categories, enforcement_level, scope, created_at, updated_at
	FROM universe_facts`

func (s *FactStore) queryFacts(query string, args ...interface{}) ([]models.UniverseFact, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.UniverseFact
	for rows.Next() {
		f, err := scanFactInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFactInto(sc rowScanner) (*models.UniverseFact, error) {
	var (
		f           models.UniverseFact
		description sql.NullString
		categories  sql.NullString
		level       string
		scope       sql.NullString
	)
	err := sc.Scan(&f.ID, &f.Title, &description, &categories, &level, &scope,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Description = description.String
	fromJSONText(categories, &f.Categories)
	f.EnforcementLevel = models.EnforcementLevel(level)
	if scope.Valid && scope.String != "" {
		var sc models.FactScope
		fromJSONText(scope, &sc)
		f.Scope = &sc
	}
	return &f, nil
}

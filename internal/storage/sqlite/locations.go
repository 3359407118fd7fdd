// ABOUTME: Location storage operations for SQLite
// ABOUTME: CRUD plus containment hierarchy traversal
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// LocationStore handles location persistence
type LocationStore struct {
	db     *DB
	search *SearchStore
}

// NewLocationStore creates a new LocationStore
func NewLocationStore(db *DB, search *SearchStore) *LocationStore {
	return &LocationStore{db: db, search: search}
}

// Save inserts or updates a location
func (s *LocationStore) Save(l *models.Location) error {
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO locations (id, name, description, loc_type, parent_id, protected, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			loc_type = excluded.loc_type,
			parent_id = excluded.parent_id,
			protected = excluded.protected,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, l.ID, l.Name, nullString(l.Description), nullString(l.LocType),
		nullString(l.ParentID), boolToInt(l.Protected), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}

	return s.search.UpsertDoc(models.TypeLocation, l.ID, l.Name, l.Description)
}

// GetByID retrieves a location by its ID
func (s *LocationStore) GetByID(id string) (*models.Location, error) {
	l, err := scanLocationInto(s.db.QueryRow(locationSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// GetByName retrieves a location by exact name
func (s *LocationStore) GetByName(name string) (*models.Location, error) {
	l, err := scanLocationInto(s.db.QueryRow(locationSelect+` WHERE name = ? COLLATE NOCASE`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// List retrieves all locations ordered by name
func (s *LocationStore) List() ([]models.Location, error) {
	return s.queryLocations(locationSelect + ` ORDER BY name`)
}

// Children retrieves the direct children of a location
func (s *LocationStore) Children(parentID string) ([]models.Location, error) {
	return s.queryLocations(locationSelect+` WHERE parent_id = ? ORDER BY name`, parentID)
}

// Ancestors walks parent links from a location to the root, nearest first
func (s *LocationStore) Ancestors(id string) ([]models.Location, error) {
	var out []models.Location
	seen := map[string]bool{id: true}
	cur := id
	for {
		l, err := scanLocationInto(s.db.QueryRow(locationSelect+` WHERE id = (SELECT parent_id FROM locations WHERE id = ?)`, cur))
		if err == sql.ErrNoRows {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if seen[l.ID] {
			// Containment cycle; stop rather than loop
			return out, nil
		}
		seen[l.ID] = true
		out = append(out, *l)
		cur = l.ID
	}
}

// Delete removes a location row. Referential delete policy lives in
// the storage facade.
func (s *LocationStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM locations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// SetProtected toggles deletion protection
func (s *LocationStore) SetProtected(id string, protected bool) error {
	res, err := s.db.Exec(`UPDATE locations SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const locationSelect = `
	SELECT id, name, description, loc_type, parent_id, protected, embedding, composite_text, embedding_stale, created_at, updated_at
	FROM locations`

func (s *LocationStore) queryLocations(query string, args ...interface{}) ([]models.Location, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Location
	for rows.Next() {
		l, err := scanLocationInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLocationInto(sc rowScanner) (*models.Location, error) {
	var (
		l           models.Location
		description sql.NullString
		locType     sql.NullString
		parentID    sql.NullString
		protected   int
		blob        []byte
		composite   sql.NullString
		stale       int
	)
	err := sc.Scan(&l.ID, &l.Name, &description, &locType, &parentID, &protected,
		&blob, &composite, &stale, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Description = description.String
	l.LocType = locType.String
	l.ParentID = parentID.String
	l.Protected = protected != 0
	l.Embedding = DecodeVector(blob)
	l.CompositeText = composite.String
	l.Stale = stale != 0
	return &l, nil
}

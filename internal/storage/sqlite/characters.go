// ABOUTME: Character storage operations for SQLite
// ABOUTME: CRUD plus alias-aware lookup and graph degree queries
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// CharacterStore handles character persistence
type CharacterStore struct {
	db     *DB
	search *SearchStore
}

// NewCharacterStore creates a new CharacterStore
func NewCharacterStore(db *DB, search *SearchStore) *CharacterStore {
	return &CharacterStore{db: db, search: search}
}

// Save inserts or updates a character. Mutations mark the embedding stale
// and refresh the keyword index.
func (s *CharacterStore) Save(c *models.Character) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO characters (id, name, aliases, roles, description, profile, protected, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			aliases = excluded.aliases,
			roles = excluded.roles,
			description = excluded.description,
			profile = excluded.profile,
			protected = excluded.protected,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, c.ID, c.Name, jsonText(c.Aliases), jsonText(c.Roles), nullString(c.Description),
		jsonText(c.Profile), boolToInt(c.Protected), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}

	body := strings.Join(append(append([]string{c.Description}, c.Aliases...), flattenProfile(c.Profile)...), " ")
	return s.search.UpsertDoc(models.TypeCharacter, c.ID, c.Name, body)
}

// GetByID retrieves a character by its ID
func (s *CharacterStore) GetByID(id string) (*models.Character, error) {
	row := s.db.QueryRow(`
		SELECT id, name, aliases, roles, description, profile, protected, embedding, composite_text, embedding_stale, created_at, updated_at
		FROM characters WHERE id = ?
	`, id)
	return scanCharacter(row)
}

// GetByName retrieves a character by exact name or alias
func (s *CharacterStore) GetByName(name string) (*models.Character, error) {
	row := s.db.QueryRow(`
		SELECT id, name, aliases, roles, description, profile, protected, embedding, composite_text, embedding_stale, created_at, updated_at
		FROM characters WHERE name = ? COLLATE NOCASE
	`, name)
	c, err := scanCharacter(row)
	if err != nil || c != nil {
		return c, err
	}

	// Fall back to alias scan; aliases are small JSON arrays
	rows, err := s.db.Query(`
		SELECT id, name, aliases, roles, description, profile, protected, embedding, composite_text, embedding_stale, created_at, updated_at
		FROM characters WHERE aliases LIKE ?
	`, "%"+name+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		c, err := scanCharacterRows(rows)
		if err != nil {
			return nil, err
		}
		for _, a := range c.Aliases {
			if strings.EqualFold(a, name) {
				return c, nil
			}
		}
	}
	return nil, rows.Err()
}

// List retrieves all characters ordered by name
func (s *CharacterStore) List() ([]models.Character, error) {
	rows, err := s.db.Query(`
		SELECT id, name, aliases, roles, description, profile, protected, embedding, composite_text, embedding_stale, created_at, updated_at
		FROM characters ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Character
	for rows.Next() {
		c, err := scanCharacterRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Delete removes a character; edge tables cascade via foreign keys
func (s *CharacterStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM characters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// SetProtected toggles deletion protection
func (s *CharacterStore) SetProtected(id string, protected bool) error {
	res, err := s.db.Exec(`UPDATE characters SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of characters
func (s *CharacterStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM characters`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCharacterInto(sc rowScanner) (*models.Character, error) {
	var (
		c           models.Character
		aliases     sql.NullString
		roles       sql.NullString
		description sql.NullString
		profile     sql.NullString
		protected   int
		blob        []byte
		composite   sql.NullString
		stale       int
	)
	err := sc.Scan(&c.ID, &c.Name, &aliases, &roles, &description, &profile, &protected,
		&blob, &composite, &stale, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	fromJSONText(aliases, &c.Aliases)
	fromJSONText(roles, &c.Roles)
	c.Description = description.String
	fromJSONText(profile, &c.Profile)
	c.Protected = protected != 0
	c.Embedding = DecodeVector(blob)
	c.CompositeText = composite.String
	c.Stale = stale != 0
	return &c, nil
}

func scanCharacter(row *sql.Row) (*models.Character, error) {
	c, err := scanCharacterInto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanCharacterRows(rows *sql.Rows) (*models.Character, error) {
	return scanCharacterInto(rows)
}

func flattenProfile(profile map[string][]string) []string {
	var out []string
	for _, vals := range profile {
		out = append(out, vals...)
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ABOUTME: Note and note-link storage operations for SQLite
// ABOUTME: Freeform notes attachable to any entity
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// NoteStore handles note persistence
type NoteStore struct {
	db     *DB
	search *SearchStore
}

// NewNoteStore creates a new NoteStore
func NewNoteStore(db *DB, search *SearchStore) *NoteStore {
	return &NoteStore{db: db, search: search}
}

// Save inserts or updates a note
func (s *NoteStore) Save(n *models.Note) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO notes (id, title, content, tags, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, n.ID, n.Title, nullString(n.Body), jsonText(n.Tags), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	return s.search.UpsertDoc(models.TypeNote, n.ID, n.Title, n.Body)
}

// GetByID retrieves a note by its ID
func (s *NoteStore) GetByID(id string) (*models.Note, error) {
	n, err := scanNoteInto(s.db.QueryRow(noteSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// List retrieves all notes, newest first
func (s *NoteStore) List() ([]models.Note, error) {
	return s.queryNotes(noteSelect + ` ORDER BY created_at DESC`)
}

// ListByEntity retrieves notes linked to an entity
func (s *NoteStore) ListByEntity(entityID string) ([]models.Note, error) {
	return s.queryNotes(noteSelect+`
		WHERE id IN (SELECT note_id FROM note_links WHERE entity_id = ?)
		ORDER BY created_at DESC`, entityID)
}

// Delete removes a note; its links cascade
func (s *NoteStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// Link attaches a note to an entity
func (s *NoteStore) Link(noteID, entityID string) error {
	_, err := s.db.Exec(`
		INSERT INTO note_links (note_id, entity_id) VALUES (?, ?)
		ON CONFLICT(note_id, entity_id) DO NOTHING
	`, noteID, entityID)
	return err
}

// Unlink detaches a note from an entity
func (s *NoteStore) Unlink(noteID, entityID string) error {
	_, err := s.db.Exec(`DELETE FROM note_links WHERE note_id = ? AND entity_id = ?`, noteID, entityID)
	return err
}

// Links lists the entity IDs a note is attached to
func (s *NoteStore) Links(noteID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT entity_id FROM note_links WHERE note_id = ?`, noteID)
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

const noteSelect = `
	SELECT id, title, content, tags, embedding, composite_text, embedding_stale, created_at, updated_at
	FROM notes`

func (s *NoteStore) queryNotes(query string, args ...interface{}) ([]models.Note, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Note
	for rows.Next() {
		n, err := scanNoteInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func scanNoteInto(sc rowScanner) (*models.Note, error) {
	var (
		n         models.Note
		body      sql.NullString
		tags      sql.NullString
		blob      []byte
		composite sql.NullString
		stale     int
	)
	err := sc.Scan(&n.ID, &n.Title, &body, &tags, &blob, &composite, &stale,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Body = body.String
	fromJSONText(tags, &n.Tags)
	n.Embedding = DecodeVector(blob)
	n.CompositeText = composite.String
	n.Stale = stale != 0
	return &n, nil
}

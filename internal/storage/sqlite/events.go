// ABOUTME: Event storage operations for SQLite
// ABOUTME: CRUD plus sequence-ordered timeline queries
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// EventStore handles event persistence
type EventStore struct {
	db     *DB
	search *SearchStore
}

// NewEventStore creates a new EventStore
func NewEventStore(db *DB, search *SearchStore) *EventStore {
	return &EventStore{db: db, search: search}
}

// Save inserts or updates an event
func (s *EventStore) Save(e *models.Event) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, title, description, sequence, date, date_precision, duration_end, protected, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			sequence = excluded.sequence,
			date = excluded.date,
			date_precision = excluded.date_precision,
			duration_end = excluded.duration_end,
			protected = excluded.protected,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, e.ID, e.Title, nullString(e.Description), e.Sequence, nullString(e.Date),
		nullString(e.DatePrecision), nullString(e.DurationEnd), boolToInt(e.Protected), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return s.search.UpsertDoc(models.TypeEvent, e.ID, e.Title, e.Description)
}

// GetByID retrieves an event by its ID
func (s *EventStore) GetByID(id string) (*models.Event, error) {
	e, err := scanEventInto(s.db.QueryRow(eventSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// List retrieves all events in timeline order
func (s *EventStore) List() ([]models.Event, error) {
	return s.queryEvents(eventSelect + ` ORDER BY sequence, created_at`)
}

// MaxSequence returns the largest sequence number, or 0 with no events
func (s *EventStore) MaxSequence() (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(sequence) FROM events`).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max.Int64, nil
}

// Neighbors returns up to n events on either side of an event in timeline
// order, excluding the event itself.
func (s *EventStore) Neighbors(id string, n int) (before, after []models.Event, err error) {
	e, err := s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if e == nil {
		return nil, nil, sql.ErrNoRows
	}

	before, err = s.queryEvents(eventSelect+` WHERE sequence < ? AND id != ? ORDER BY sequence DESC LIMIT ?`, e.Sequence, id, n)
	if err != nil {
		return nil, nil, err
	}
	// Reverse to chronological order
	for i, j := 0, len(before)-1; i < j; i, j = i+1, j-1 {
		before[i], before[j] = before[j], before[i]
	}

	after, err = s.queryEvents(eventSelect+` WHERE sequence >= ? AND id != ? ORDER BY sequence LIMIT ?`, e.Sequence, id, n)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// Delete removes an event; scenes referencing it keep existing with the
// event unset, knowledge edges keep existing with the event unset.
func (s *EventStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// SetProtected toggles deletion protection
func (s *EventStore) SetProtected(id string, protected bool) error {
	res, err := s.db.Exec(`UPDATE events SET protected = ? WHERE id = ?`, boolToInt(protected), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const eventSelect = `
	SELECT id, title, description, sequence, date, date_precision, duration_end, protected, embedding, composite_text, embedding_stale, created_at, updated_at
	FROM events`

func (s *EventStore) queryEvents(query string, args ...interface{}) ([]models.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Event
	for rows.Next() {
		e, err := scanEventInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEventInto(sc rowScanner) (*models.Event, error) {
	var (
		e           models.Event
		description sql.NullString
		date        sql.NullString
		precision   sql.NullString
		durationEnd sql.NullString
		protected   int
		blob        []byte
		composite   sql.NullString
		stale       int
	)
	err := sc.Scan(&e.ID, &e.Title, &description, &e.Sequence, &date, &precision,
		&durationEnd, &protected, &blob, &composite, &stale, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	e.Date = date.String
	e.DatePrecision = precision.String
	e.DurationEnd = durationEnd.String
	e.Protected = protected != 0
	e.Embedding = DecodeVector(blob)
	e.CompositeText = composite.String
	e.Stale = stale != 0
	return &e, nil
}

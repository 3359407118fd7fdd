// ABOUTME: Arc snapshot storage operations for SQLite
// ABOUTME: Append-only embedding history ordered by creation time
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// SnapshotStore handles arc snapshot persistence
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SnapshotStore
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Append records a new snapshot. Snapshots are never updated or reordered.
func (s *SnapshotStore) Append(snap *models.ArcSnapshot) error {
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var delta sql.NullFloat64
	if snap.DeltaMagnitude != nil {
		delta = sql.NullFloat64{Float64: float64(*snap.DeltaMagnitude), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO arc_snapshots (id, entity_id, entity_type, embedding, delta_magnitude, event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.EntityID, snap.EntityType, EncodeVector(snap.Embedding),
		delta, nullString(snap.EventID), createdAt)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// History retrieves an entity's snapshots oldest first
func (s *SnapshotStore) History(entityID string) ([]models.ArcSnapshot, error) {
	return s.query(snapshotSelect+` WHERE entity_id = ? ORDER BY created_at, id`, entityID)
}

// Recent retrieves an entity's newest snapshots, newest first
func (s *SnapshotStore) Recent(entityID string, limit int) ([]models.ArcSnapshot, error) {
	return s.query(snapshotSelect+` WHERE entity_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, entityID, limit)
}

// Latest retrieves an entity's newest snapshot, nil when none exist
func (s *SnapshotStore) Latest(entityID string) (*models.ArcSnapshot, error) {
	snaps, err := s.Recent(entityID, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// LatestBefore retrieves the newest snapshot at or before a point in time
func (s *SnapshotStore) LatestBefore(entityID string, t time.Time) (*models.ArcSnapshot, error) {
	snaps, err := s.query(snapshotSelect+`
		WHERE entity_id = ? AND created_at <= ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, entityID, t)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// EntityIDs lists every entity that has at least one snapshot
func (s *SnapshotStore) EntityIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT entity_id FROM arc_snapshots ORDER BY entity_id`)
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

// DeleteByEntity removes all snapshots of an entity
func (s *SnapshotStore) DeleteByEntity(entityID string) error {
	_, err := s.db.Exec(`DELETE FROM arc_snapshots WHERE entity_id = ?`, entityID)
	return err
}

const snapshotSelect = `
	SELECT id, entity_id, entity_type, embedding, delta_magnitude, event_id, created_at
	FROM arc_snapshots`

func (s *SnapshotStore) query(query string, args ...interface{}) ([]models.ArcSnapshot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ArcSnapshot
	for rows.Next() {
		var (
			snap    models.ArcSnapshot
			blob    []byte
			delta   sql.NullFloat64
			eventID sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.EntityID, &snap.EntityType, &blob, &delta, &eventID, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.Embedding = DecodeVector(blob)
		if delta.Valid {
			v := float32(delta.Float64)
			snap.DeltaMagnitude = &v
		}
		snap.EventID = eventID.String
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ABOUTME: sqlite-vec index maintenance and KNN queries
// ABOUTME: vec_map assigns stable integer rowids to typed entity ids
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/florinutz/narra/internal/models"
)

// VectorStore maintains the vec0 ANN index and its rowid mapping
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new VectorStore
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// VectorMatch is one KNN result
type VectorMatch struct {
	EntityID   string
	EntityType models.EntityType
	Distance   float64
	Similarity float64
}

// Upsert inserts or replaces an entity's vector in the index
func (s *VectorStore) Upsert(entityType models.EntityType, entityID string, vec []float32) error {
	if len(vec) != s.db.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), s.db.dim)
	}

	var rowid int64
	err := s.db.QueryRow(`SELECT id FROM vec_map WHERE entity_id = ?`, entityID).Scan(&rowid)
	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.Exec(`INSERT INTO vec_map (entity_id, entity_type) VALUES (?, ?)`, entityID, string(entityType))
		if err != nil {
			return fmt.Errorf("failed to map vector rowid: %w", err)
		}
		rowid, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read vector rowid: %w", err)
		}
	case err != nil:
		return err
	default:
		// Replace in place
		if _, err := s.db.Exec(`DELETE FROM vec_index WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("failed to clear old vector: %w", err)
		}
	}

	if _, err := s.db.Exec(`INSERT INTO vec_index (rowid, embedding) VALUES (?, ?)`, rowid, EncodeVector(vec)); err != nil {
		return fmt.Errorf("failed to index vector: %w", err)
	}
	return nil
}

// Delete removes an entity's vector from the index
func (s *VectorStore) Delete(entityID string) error {
	var rowid int64
	err := s.db.QueryRow(`SELECT id FROM vec_map WHERE entity_id = ?`, entityID).Scan(&rowid)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM vec_index WHERE rowid = ?`, rowid); err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM vec_map WHERE id = ?`, rowid)
	return err
}

// Search runs a KNN query against the index. An empty typeFilter searches
// all entity types.
func (s *VectorStore) Search(query []float32, k int, typeFilter []models.EntityType) ([]VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	// vec0 KNN cannot join-filter inside the MATCH, so over-fetch and
	// filter by type afterwards.
	fetch := k
	if len(typeFilter) > 0 {
		fetch = k * 4
	}

	rows, err := s.db.Query(`
		SELECT m.entity_id, m.entity_type, v.distance
		FROM vec_index v
		JOIN vec_map m ON m.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, EncodeVector(query), fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	allowed := map[models.EntityType]bool{}
	for _, t := range typeFilter {
		allowed[t] = true
	}

	var out []VectorMatch
	for rows.Next() {
		var (
			m  VectorMatch
			et string
		)
		if err := rows.Scan(&m.EntityID, &et, &m.Distance); err != nil {
			return nil, err
		}
		m.EntityType = models.EntityType(et)
		m.Similarity = 1 - m.Distance
		if len(allowed) > 0 && !allowed[m.EntityType] {
			continue
		}
		out = append(out, m)
		if len(out) == k {
			break
		}
	}
	return out, rows.Err()
}

// Count returns the number of indexed vectors
func (s *VectorStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM vec_map`).Scan(&n)
	return n, err
}

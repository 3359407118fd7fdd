// ABOUTME: Persisted phase and phase-membership storage for SQLite
// ABOUTME: Re-detection wipes and recreates the whole phase set atomically
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// PhaseStore handles narrative phase persistence
type PhaseStore struct {
	db *DB
}

// NewPhaseStore creates a new PhaseStore
func NewPhaseStore(db *DB) *PhaseStore {
	return &PhaseStore{db: db}
}

// ReplaceAll wipes all persisted phases and writes the new set in one
// transaction. Detection results are always saved whole.
func (s *PhaseStore) ReplaceAll(phases []models.Phase, memberships []models.PhaseMembership) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin phase transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM phases`); err != nil {
		return fmt.Errorf("failed to clear phases: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range phases {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.Exec(`
			INSERT INTO phases (id, label, phase_order, sequence_range_min, sequence_range_max, entity_type_counts, weight_content, weight_neighborhood, weight_temporal, member_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, p.ID, p.Label, p.PhaseOrder, nullInt64Ptr(p.SequenceRangeMin), nullInt64Ptr(p.SequenceRangeMax),
			jsonText(p.EntityTypeCounts), p.WeightContent, p.WeightNeighbor, p.WeightTemporal,
			p.MemberCount, createdAt)
		if err != nil {
			return fmt.Errorf("failed to save phase: %w", err)
		}
	}

	for _, m := range memberships {
		_, err := tx.Exec(`
			INSERT INTO phase_memberships (entity_id, phase_id, entity_type, entity_name, centrality, sequence_position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.EntityID, m.PhaseID, m.EntityType, nullString(m.EntityName), m.Centrality,
			nullFloatPtr(m.SequencePosition))
		if err != nil {
			return fmt.Errorf("failed to save phase membership: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteAll removes all persisted phases and memberships
func (s *PhaseStore) DeleteAll() error {
	_, err := s.db.Exec(`DELETE FROM phases`)
	return err
}

// HasPhases reports whether any phases are persisted
func (s *PhaseStore) HasPhases() (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM phases`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// List retrieves all phases in story order
func (s *PhaseStore) List() ([]models.Phase, error) {
	rows, err := s.db.Query(`
		SELECT id, label, phase_order, sequence_range_min, sequence_range_max, entity_type_counts, weight_content, weight_neighborhood, weight_temporal, member_count, created_at, updated_at
		FROM phases ORDER BY phase_order
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Phase
	for rows.Next() {
		var (
			p      models.Phase
			minSeq sql.NullInt64
			maxSeq sql.NullInt64
			counts sql.NullString
		)
		err := rows.Scan(&p.ID, &p.Label, &p.PhaseOrder, &minSeq, &maxSeq, &counts,
			&p.WeightContent, &p.WeightNeighbor, &p.WeightTemporal, &p.MemberCount,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if minSeq.Valid {
			v := minSeq.Int64
			p.SequenceRangeMin = &v
		}
		if maxSeq.Valid {
			v := maxSeq.Int64
			p.SequenceRangeMax = &v
		}
		fromJSONText(counts, &p.EntityTypeCounts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Memberships retrieves the membership edges of one phase, most central first
func (s *PhaseStore) Memberships(phaseID string) ([]models.PhaseMembership, error) {
	return s.queryMemberships(`
		SELECT entity_id, phase_id, entity_type, entity_name, centrality, sequence_position
		FROM phase_memberships WHERE phase_id = ?
		ORDER BY centrality DESC`, phaseID)
}

// MembershipsOf retrieves every phase an entity belongs to
func (s *PhaseStore) MembershipsOf(entityID string) ([]models.PhaseMembership, error) {
	return s.queryMemberships(`
		SELECT entity_id, phase_id, entity_type, entity_name, centrality, sequence_position
		FROM phase_memberships WHERE entity_id = ?
		ORDER BY centrality DESC`, entityID)
}

// AllMemberships retrieves every membership edge
func (s *PhaseStore) AllMemberships() ([]models.PhaseMembership, error) {
	return s.queryMemberships(`
		SELECT entity_id, phase_id, entity_type, entity_name, centrality, sequence_position
		FROM phase_memberships ORDER BY phase_id, centrality DESC`)
}

func (s *PhaseStore) queryMemberships(query string, args ...interface{}) ([]models.PhaseMembership, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.PhaseMembership
	for rows.Next() {
		var (
			m    models.PhaseMembership
			name sql.NullString
			pos  sql.NullFloat64
		)
		if err := rows.Scan(&m.EntityID, &m.PhaseID, &m.EntityType, &name, &m.Centrality, &pos); err != nil {
			return nil, err
		}
		m.EntityName = name.String
		if pos.Valid {
			v := pos.Float64
			m.SequencePosition = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ABOUTME: Annotation storage operations for SQLite
// ABOUTME: Model output attached to entities, newest first
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// AnnotationStore handles annotation persistence
type AnnotationStore struct {
	db *DB
}

// NewAnnotationStore creates a new AnnotationStore
func NewAnnotationStore(db *DB) *AnnotationStore {
	return &AnnotationStore{db: db}
}

// Save inserts an annotation
func (s *AnnotationStore) Save(a *models.Annotation) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	output, err := json.Marshal(a.Output)
	if err != nil {
		return fmt.Errorf("failed to encode annotation output: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO annotations (id, entity_id, model_type, model_version, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.EntityID, a.ModelType, nullString(a.ModelVersion), string(output), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save annotation: %w", err)
	}
	return nil
}

// ListByEntity retrieves an entity's annotations, newest first
func (s *AnnotationStore) ListByEntity(entityID string) ([]models.Annotation, error) {
	rows, err := s.db.Query(`
		SELECT id, entity_id, model_type, model_version, output, created_at
		FROM annotations WHERE entity_id = ? ORDER BY created_at DESC
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Annotation
	for rows.Next() {
		var (
			a       models.Annotation
			version sql.NullString
			output  string
		)
		if err := rows.Scan(&a.ID, &a.EntityID, &a.ModelType, &version, &output, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ModelVersion = version.String
		_ = json.Unmarshal([]byte(output), &a.Output)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteByEntity removes all annotations of an entity
func (s *AnnotationStore) DeleteByEntity(entityID string) error {
	_, err := s.db.Exec(`DELETE FROM annotations WHERE entity_id = ?`, entityID)
	return err
}

// ABOUTME: Embedding lifecycle operations shared by all embeddable tables
// ABOUTME: Stale marking, vector persistence, and backfill candidate listing
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/florinutz/narra/internal/models"
)

// embeddableTables maps entity types to their table names.
var embeddableTables = map[models.EntityType]string{
	models.TypeCharacter:    "characters",
	models.TypeLocation:     "locations",
	models.TypeEvent:        "events",
	models.TypeScene:        "scenes",
	models.TypeKnowledge:    "knowledge",
	models.TypeNote:         "notes",
	models.TypePerception:   "perceptions",
	models.TypeRelationship: "relationships",
}

// EmbeddingStore handles embedding state across all embeddable tables
type EmbeddingStore struct {
	db      *DB
	vectors *VectorStore
}

// NewEmbeddingStore creates a new EmbeddingStore
func NewEmbeddingStore(db *DB, vectors *VectorStore) *EmbeddingStore {
	return &EmbeddingStore{db: db, vectors: vectors}
}

func tableFor(entityType models.EntityType) (string, error) {
	table, ok := embeddableTables[entityType]
	if !ok {
		return "", fmt.Errorf("entity type %q has no embeddings", entityType)
	}
	return table, nil
}

// StaleEntity is a backfill candidate: a row whose embedding is missing or stale
type StaleEntity struct {
	EntityType    models.EntityType
	ID            string
	CompositeText string
	Embedding     []float32
}

// SetEmbedding stores a fresh vector and composite text, clears the stale
// flag, and mirrors the vector into the ANN index.
func (s *EmbeddingStore) SetEmbedding(entityType models.EntityType, id string, vec []float32, compositeText string) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET embedding = ?, composite_text = ?, embedding_stale = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, table),
		EncodeVector(vec), compositeText, id)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	return s.vectors.Upsert(entityType, id, vec)
}

// ClearStale clears the stale flag without touching the vector. Used when a
// re-encoded composite text is byte-identical to the stored one.
func (s *EmbeddingStore) ClearStale(entityType models.EntityType, id string) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET embedding_stale = 0 WHERE id = ?`, table), id)
	return err
}

// MarkStale flags a row for re-embedding
func (s *EmbeddingStore) MarkStale(entityType models.EntityType, id string) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET embedding_stale = 1 WHERE id = ?`, table), id)
	return err
}

// GetEmbedding retrieves the stored vector and composite text for a row
func (s *EmbeddingStore) GetEmbedding(entityType models.EntityType, id string) ([]float32, string, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, "", err
	}

	var (
		blob      []byte
		composite sql.NullString
	)
	err = s.db.QueryRow(
		fmt.Sprintf(`SELECT embedding, composite_text FROM %s WHERE id = ?`, table), id).
		Scan(&blob, &composite)
	if err != nil {
		return nil, "", err
	}
	return DecodeVector(blob), composite.String, nil
}

// ListStale returns up to limit rows of one type that need (re-)embedding
func (s *EmbeddingStore) ListStale(entityType models.EntityType, limit int) ([]StaleEntity, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT id, composite_text, embedding FROM %s WHERE embedding_stale = 1 OR embedding IS NULL LIMIT ?`, table), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []StaleEntity
	for rows.Next() {
		var (
			e         StaleEntity
			composite sql.NullString
			blob      []byte
		)
		if err := rows.Scan(&e.ID, &composite, &blob); err != nil {
			return nil, err
		}
		e.EntityType = entityType
		e.CompositeText = composite.String
		e.Embedding = DecodeVector(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByState returns (total, embedded, stale) counts for one type
func (s *EmbeddingStore) CountByState(entityType models.EntityType) (total, embedded, stale int, err error) {
	table, tErr := tableFor(entityType)
	if tErr != nil {
		return 0, 0, 0, tErr
	}
	err = s.db.QueryRow(fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(CASE WHEN embedding IS NOT NULL AND embedding_stale = 0 THEN 1 END),
		       COUNT(CASE WHEN embedding_stale = 1 OR embedding IS NULL THEN 1 END)
		FROM %s`, table)).Scan(&total, &embedded, &stale)
	return total, embedded, stale, err
}

// EmbeddedVector is an (id, vector) pair for in-process index builds
type EmbeddedVector struct {
	ID        string
	Embedding []float32
}

// ListEmbedded streams all fresh vectors of one type, for building
// in-memory ANN indexes and clustering inputs.
func (s *EmbeddingStore) ListEmbedded(entityType models.EntityType) ([]EmbeddedVector, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT id, embedding FROM %s WHERE embedding IS NOT NULL AND embedding_stale = 0`, table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EmbeddedVector
	for rows.Next() {
		var (
			v    EmbeddedVector
			blob []byte
		)
		if err := rows.Scan(&v.ID, &blob); err != nil {
			return nil, err
		}
		v.Embedding = DecodeVector(blob)
		out = append(out, v)
	}
	return out, rows.Err()
}

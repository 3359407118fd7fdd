// ABOUTME: Knowledge entity and append-only knowledge edge storage
// ABOUTME: Latest edge per (character, knowledge) is the current epistemic state
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/models"
)

// KnowledgeStore handles knowledge entities and their edge history
type KnowledgeStore struct {
	db     *DB
	search *SearchStore
}

// NewKnowledgeStore creates a new KnowledgeStore
func NewKnowledgeStore(db *DB, search *SearchStore) *KnowledgeStore {
	return &KnowledgeStore{db: db, search: search}
}

// Save inserts or updates a knowledge entity
func (s *KnowledgeStore) Save(k *models.Knowledge) error {
	createdAt := k.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO knowledge (id, character_id, fact, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			character_id = excluded.character_id,
			fact = excluded.fact,
			embedding_stale = 1,
			updated_at = CURRENT_TIMESTAMP
	`, k.ID, k.CharacterID, k.Fact, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save knowledge: %w", err)
	}

	return s.search.UpsertDoc(models.TypeKnowledge, k.ID, k.Fact, "")
}

// GetByID retrieves a knowledge entity
func (s *KnowledgeStore) GetByID(id string) (*models.Knowledge, error) {
	var k models.Knowledge
	err := s.db.QueryRow(`
		SELECT id, character_id, fact, created_at, updated_at FROM knowledge WHERE id = ?
	`, id).Scan(&k.ID, &k.CharacterID, &k.Fact, &k.CreatedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListByCharacter retrieves a character's knowledge entities
func (s *KnowledgeStore) ListByCharacter(characterID string) ([]models.Knowledge, error) {
	rows, err := s.db.Query(`
		SELECT id, character_id, fact, created_at, updated_at FROM knowledge
		WHERE character_id = ? ORDER BY created_at
	`, characterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Knowledge
	for rows.Next() {
		var k models.Knowledge
		if err := rows.Scan(&k.ID, &k.CharacterID, &k.Fact, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Delete removes a knowledge entity; its edge history cascades
func (s *KnowledgeStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM knowledge WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete knowledge: %w", err)
	}
	return s.search.DeleteDoc(id)
}

// AppendEdge appends a knowledge edge. Edges are never updated in place;
// epistemic history is the sequence of edges.
func (s *KnowledgeStore) AppendEdge(e *models.KnowledgeEdge) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO knowledge_edges (id, character_id, knowledge_id, certainty, learning_method, event_id, source_character, truth_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CharacterID, e.KnowledgeID, string(e.Certainty), nullString(string(e.LearningMethod)),
		nullString(e.EventID), nullString(e.SourceCharacter), nullBoolPtr(e.TruthValue), createdAt)
	if err != nil {
		return fmt.Errorf("failed to append knowledge edge: %w", err)
	}
	return nil
}

// EdgeHistory lists all edges for one (character, knowledge) pair, oldest first
func (s *KnowledgeStore) EdgeHistory(characterID, knowledgeID string) ([]models.KnowledgeEdge, error) {
	return s.queryEdges(edgeSelect+`
		WHERE character_id = ? AND knowledge_id = ? ORDER BY created_at, id`, characterID, knowledgeID)
}

// LatestEdges returns the newest edge per knowledge entity for one character
func (s *KnowledgeStore) LatestEdges(characterID string) ([]models.KnowledgeEdge, error) {
	return s.queryEdges(edgeSelect+`
		WHERE character_id = ? AND id IN (
			SELECT id FROM knowledge_edges e2
			WHERE e2.character_id = knowledge_edges.character_id
			  AND e2.knowledge_id = knowledge_edges.knowledge_id
			ORDER BY e2.created_at DESC, e2.id DESC LIMIT 1
		)
		ORDER BY created_at`, characterID)
}

// AllLatestEdges returns the newest edge per (character, knowledge) pair
func (s *KnowledgeStore) AllLatestEdges() ([]models.KnowledgeEdge, error) {
	return s.queryEdges(edgeSelect + `
		WHERE id IN (
			SELECT id FROM knowledge_edges e2
			WHERE e2.character_id = knowledge_edges.character_id
			  AND e2.knowledge_id = knowledge_edges.knowledge_id
			ORDER BY e2.created_at DESC, e2.id DESC LIMIT 1
		)
		ORDER BY character_id, created_at`)
}

// EdgesForKnowledge lists the latest edge per character for one knowledge entity
func (s *KnowledgeStore) EdgesForKnowledge(knowledgeID string) ([]models.KnowledgeEdge, error) {
	return s.queryEdges(edgeSelect+`
		WHERE knowledge_id = ? AND id IN (
			SELECT id FROM knowledge_edges e2
			WHERE e2.character_id = knowledge_edges.character_id
			  AND e2.knowledge_id = knowledge_edges.knowledge_id
			ORDER BY e2.created_at DESC, e2.id DESC LIMIT 1
		)`, knowledgeID)
}

const edgeSelect = `
	SELECT id, character_id, knowledge_id, certainty, learning_method, event_id, source_character, truth_value, created_at
	FROM knowledge_edges`

func (s *KnowledgeStore) queryEdges(query string, args ...interface{}) ([]models.KnowledgeEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.KnowledgeEdge
	for rows.Next() {
		var (
			e       models.KnowledgeEdge
			method  sql.NullString
			eventID sql.NullString
			source  sql.NullString
			truth   sql.NullBool
		)
		if err := rows.Scan(&e.ID, &e.CharacterID, &e.KnowledgeID, (*string)(&e.Certainty),
			&method, &eventID, &source, &truth, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.LearningMethod = models.LearningMethod(method.String)
		e.EventID = eventID.String
		e.SourceCharacter = source.String
		if truth.Valid {
			v := truth.Bool
			e.TruthValue = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

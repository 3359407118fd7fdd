// ABOUTME: FTS5 keyword search and search document maintenance
// ABOUTME: BM25 ranking over the unified external-content index
package sqlite

import (
	"fmt"
	"strings"

	"github.com/florinutz/narra/internal/models"
)

// SearchStore maintains search_docs and queries the FTS5 index
type SearchStore struct {
	db *DB
}

// NewSearchStore creates a new SearchStore
func NewSearchStore(db *DB) *SearchStore {
	return &SearchStore{db: db}
}

// KeywordMatch is one BM25-ranked keyword hit
type KeywordMatch struct {
	EntityID   string
	EntityType models.EntityType
	Title      string
	Snippet    string
	Rank       float64
}

// UpsertDoc writes an entity's searchable text. The FTS index follows via
// triggers on search_docs.
func (s *SearchStore) UpsertDoc(entityType models.EntityType, entityID, title, body string) error {
	_, err := s.db.Exec(`
		INSERT INTO search_docs (entity_id, entity_type, title, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			title = excluded.title,
			body = excluded.body
	`, entityID, string(entityType), title, body)
	if err != nil {
		return fmt.Errorf("failed to index search document: %w", err)
	}
	return nil
}

// DeleteDoc removes an entity's search document
func (s *SearchStore) DeleteDoc(entityID string) error {
	_, err := s.db.Exec(`DELETE FROM search_docs WHERE entity_id = ?`, entityID)
	return err
}

// Search runs a BM25-ranked keyword query. An empty typeFilter searches all
// searchable types. offset/limit paginate over the ranked list.
func (s *SearchStore) Search(query string, typeFilter []models.EntityType, limit, offset int) ([]KeywordMatch, error) {
	ftsQuery := escapeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(`
		SELECT d.entity_id, d.entity_type, d.title,
		       snippet(search_index, 1, '', '', '...', 12),
		       rank
		FROM search_index
		JOIN search_docs d ON d.id = search_index.rowid
		WHERE search_index MATCH ?`)
	args = append(args, ftsQuery)

	if len(typeFilter) > 0 {
		sb.WriteString(` AND d.entity_type IN (` + placeholders(len(typeFilter)) + `)`)
		for _, t := range typeFilter {
			args = append(args, string(t))
		}
	}
	sb.WriteString(` ORDER BY rank LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := s.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []KeywordMatch
	for rows.Next() {
		var (
			m  KeywordMatch
			et string
		)
		if err := rows.Scan(&m.EntityID, &et, &m.Title, &m.Snippet, &m.Rank); err != nil {
			return nil, err
		}
		m.EntityType = models.EntityType(et)
		out = append(out, m)
	}
	return out, rows.Err()
}

// escapeFTSQuery turns raw user input into a safe FTS5 query: each term
// becomes a quoted prefix token joined with implicit AND.
func escapeFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

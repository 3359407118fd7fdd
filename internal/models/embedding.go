// ABOUTME: Embedding state shared by every embeddable entity and edge
// ABOUTME: The {vector, composite text, stale flag} tuple from the embedding lifecycle
package models

import "time"

// EmbeddingState is carried by every entity that participates in the
// embedding lifecycle. A nil Embedding with Stale=true is the initial state;
// backfill fills the vector and clears the flag.
type EmbeddingState struct {
	Embedding     []float32 `json:"embedding,omitempty" yaml:"-"`
	CompositeText string    `json:"composite_text,omitempty" yaml:"-"`
	Stale         bool      `json:"embedding_stale" yaml:"-"`
}

// HasEmbedding reports whether the entity carries a trustworthy vector.
// Stale vectors must not be used for semantic reads.
func (e EmbeddingState) HasEmbedding() bool {
	return len(e.Embedding) > 0 && !e.Stale
}

// Timestamps is the created/updated pair every entity row carries.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// ABOUTME: Arc snapshots, the append-only per-entity embedding history
// ABOUTME: delta_magnitude is 1 - cosine similarity to the previous snapshot
package models

import "time"

// ArcSnapshot is one point on an entity's arc. Snapshots are append-only;
// the chronological sequence per entity is the arc.
type ArcSnapshot struct {
	ID             string    `json:"id"`
	EntityID       string    `json:"entity_id"`
	EntityType     string    `json:"entity_type"`
	Embedding      []float32 `json:"embedding"`
	DeltaMagnitude *float32  `json:"delta_magnitude,omitempty"`
	EventID        string    `json:"event_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

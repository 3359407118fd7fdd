// ABOUTME: Free-form note attachable to any entity
// ABOUTME: Attachment links are many-to-many and cascade with either endpoint
package models

// Note is a free-form annotation attachable to any number of entities.
type Note struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title" yaml:"title"`
	Body  string   `json:"body,omitempty" yaml:"body,omitempty"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	EmbeddingState
	Timestamps
}

// NoteLink attaches a note to an entity.
type NoteLink struct {
	NoteID   string `json:"note" yaml:"note"`
	EntityID string `json:"entity" yaml:"entity"`
}

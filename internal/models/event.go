// ABOUTME: Event entity carrying the story's total chronological order
// ABOUTME: The sequence integer anchors temporal scoping, phases, and timeline checks
package models

// Event is a point (or span) on the story timeline. Sequence defines a
// total chronological order across all events.
type Event struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Sequence      int64  `json:"sequence" yaml:"sequence"`
	Date          string `json:"date,omitempty" yaml:"date,omitempty"`
	DatePrecision string `json:"date_precision,omitempty" yaml:"date_precision,omitempty"`
	DurationEnd   string `json:"duration_end,omitempty" yaml:"duration_end,omitempty"`
	Protected     bool   `json:"protected,omitempty" yaml:"protected,omitempty"`
	EmbeddingState
	Timestamps
}

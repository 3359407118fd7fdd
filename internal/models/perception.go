// ABOUTME: Perceives and relates_to edges between characters
// ABOUTME: Perceives edges carry their own embedding state for perception analytics
package models

// Perception is the perceives edge (observer -> target). Usually created in
// symmetric pairs, each direction an independent edge.
type Perception struct {
	ID           string   `json:"id" yaml:"id"`
	ObserverID   string   `json:"observer" yaml:"observer"`
	TargetID     string   `json:"target" yaml:"target"`
	RelTypes     []string `json:"rel_types,omitempty" yaml:"rel_types,omitempty"`
	Subtype      string   `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Perception   string   `json:"perception,omitempty" yaml:"perception,omitempty"`
	Feelings     string   `json:"feelings,omitempty" yaml:"feelings,omitempty"`
	TensionLevel *int     `json:"tension_level,omitempty" yaml:"tension_level,omitempty"` // 0-10
	HistoryNotes string   `json:"history_notes,omitempty" yaml:"history_notes,omitempty"`
	EmbeddingState
	Timestamps
}

// Relationship is the relates_to edge (character -> character).
type Relationship struct {
	ID       string `json:"id" yaml:"id"`
	FromID   string `json:"from" yaml:"from"`
	ToID     string `json:"to" yaml:"to"`
	RelType  string `json:"rel_type" yaml:"rel_type"`
	Subtype  string `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	EmbeddingState
	Timestamps
}

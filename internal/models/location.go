// ABOUTME: Location entity forming a parent/child tree
// ABOUTME: Deletion is rejected while scenes or child locations reference it
package models

// Location is a narrative place. Parent references form a tree.
type Location struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	LocType     string `json:"loc_type,omitempty" yaml:"loc_type,omitempty"`
	ParentID    string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Protected   bool   `json:"protected,omitempty" yaml:"protected,omitempty"`
	EmbeddingState
	Timestamps
}

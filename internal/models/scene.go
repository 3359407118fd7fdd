// ABOUTME: Scene entity linking an event, locations, and participating characters
// ABOUTME: Secondary locations are a multi-valued reference with unset-on-delete semantics
package models

// Scene is a dramatized unit of story anchored to an event and a location.
type Scene struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title" yaml:"title"`
	Summary            string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	EventID            string   `json:"event" yaml:"event"`
	PrimaryLocationID  string   `json:"primary_location,omitempty" yaml:"primary_location,omitempty"`
	SecondaryLocations []string `json:"secondary_locations,omitempty" yaml:"secondary_locations,omitempty"`
	Protected          bool     `json:"protected,omitempty" yaml:"protected,omitempty"`
	EmbeddingState
	Timestamps
}

// SceneParticipant is the participates_in edge (character -> scene).
type SceneParticipant struct {
	CharacterID string `json:"character" yaml:"character"`
	SceneID     string `json:"scene" yaml:"scene"`
	Role        string `json:"role,omitempty" yaml:"role,omitempty"`
	Notes       string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

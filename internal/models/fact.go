// ABOUTME: Universe facts (declarative world rules) with enforcement levels and scopes
// ABOUTME: POV and temporal scopes compose as an intersection of predicates
package models

// EnforcementLevel controls whether a violated fact blocks mutations.
type EnforcementLevel string

const (
	EnforcementInformational EnforcementLevel = "informational"
	EnforcementWarning       EnforcementLevel = "warning"
	EnforcementStrict        EnforcementLevel = "strict"
)

// PovKind selects the point-of-view scope variant.
type PovKind string

const (
	PovAll              PovKind = "all"
	PovCharacter        PovKind = "character"
	PovGroup            PovKind = "group"
	PovExceptCharacters PovKind = "except_characters"
)

// PovScope restricts a fact to a set of characters.
type PovScope struct {
	Kind        PovKind  `json:"kind" yaml:"kind"`
	CharacterID string   `json:"character_id,omitempty" yaml:"character_id,omitempty"`
	Group       string   `json:"group,omitempty" yaml:"group,omitempty"`
	ExceptIDs   []string `json:"except_ids,omitempty" yaml:"except_ids,omitempty"`
}

// TemporalScope restricts a fact to a window on the event timeline.
// The window is [valid_from.sequence, valid_until.sequence).
type TemporalScope struct {
	ValidFromEventID  string `json:"valid_from_event,omitempty" yaml:"valid_from_event,omitempty"`
	ValidUntilEventID string `json:"valid_until_event,omitempty" yaml:"valid_until_event,omitempty"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty"`
}

// FactScope combines the two scope dimensions. Both must admit an entity
// for the fact to apply.
type FactScope struct {
	Temporal *TemporalScope `json:"temporal,omitempty" yaml:"temporal,omitempty"`
	Pov      *PovScope      `json:"pov,omitempty" yaml:"pov,omitempty"`
}

// UniverseFact is a declarative rule evaluated by the consistency service.
type UniverseFact struct {
	ID               string           `json:"id" yaml:"id"`
	Title            string           `json:"title" yaml:"title"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	Categories       []string         `json:"categories,omitempty" yaml:"categories,omitempty"`
	EnforcementLevel EnforcementLevel `json:"enforcement_level" yaml:"enforcement_level"`
	Scope            *FactScope       `json:"scope,omitempty" yaml:"scope,omitempty"`
	Timestamps
}

// FactLink attaches a fact to an entity it constrains.
type FactLink struct {
	FactID     string   `json:"fact" yaml:"fact"`
	EntityID   string   `json:"entity" yaml:"entity"`
	LinkType   string   `json:"link_type" yaml:"link_type"` // manual | auto
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

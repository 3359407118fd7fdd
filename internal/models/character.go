// ABOUTME: Character entity with aliases, roles, and the psychological profile map
// ABOUTME: Profile kinds (wound, desires, contradiction, secret) drive analytics and composites
package models

// Recognized profile trait kinds. The profile map also accepts free-form kinds.
const (
	TraitWound              = "wound"
	TraitDesireConscious    = "desire_conscious"
	TraitDesireUnconscious  = "desire_unconscious"
	TraitContradiction      = "contradiction"
	TraitSecret             = "secret"
)

// Character is a narrative character.
type Character struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name"`
	Aliases     []string            `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Roles       []string            `json:"roles,omitempty" yaml:"roles,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Profile     map[string][]string `json:"profile,omitempty" yaml:"profile,omitempty"`
	Protected   bool                `json:"protected,omitempty" yaml:"protected,omitempty"`
	EmbeddingState
	Timestamps
}

// ProfileEntries returns the ordered entries for a trait kind, nil when absent.
func (c *Character) ProfileEntries(kind string) []string {
	if c.Profile == nil {
		return nil
	}
	return c.Profile[kind]
}

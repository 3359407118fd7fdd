// ABOUTME: Session-start orientation: how much catch-up the author needs
// ABOUTME: Verbosity scales with the gap since the last session
package session

import (
	"time"
)

// Verbosity grades the orientation briefing
type Verbosity string

const (
	// VerbosityBrief is for a gap under a day
	VerbosityBrief Verbosity = "brief"
	// VerbosityStandard is for a gap of one to seven days
	VerbosityStandard Verbosity = "standard"
	// VerbosityFull is for a gap over a week
	VerbosityFull Verbosity = "full"
	// VerbosityNewWorld means data exists but no session was recorded
	VerbosityNewWorld Verbosity = "new_world"
	// VerbosityEmptyWorld means there is nothing stored at all
	VerbosityEmptyWorld Verbosity = "empty_world"
)

// Orientation is the session-start briefing
type Orientation struct {
	Verbosity        Verbosity         `json:"verbosity"`
	SinceLastSession string            `json:"since_last_session,omitempty"`
	PinnedEntities   []string          `json:"pinned_entities,omitempty"`
	RecentAccesses   []string          `json:"recent_accesses,omitempty"`
	PendingDecisions []PendingDecision `json:"pending_decisions,omitempty"`
}

// Orient builds the briefing for a session start. entityCount is the
// total number of stored entities; it decides the empty-world case.
func (m *Manager) Orient(entityCount int) (*Orientation, error) {
	state, err := m.Load()
	if err != nil {
		return nil, err
	}

	o := &Orientation{
		PinnedEntities:   state.PinnedEntities,
		RecentAccesses:   state.RecentAccesses,
		PendingDecisions: state.PendingDecisions,
	}

	switch {
	case entityCount == 0:
		o.Verbosity = VerbosityEmptyWorld
	case state.LastSession.IsZero():
		o.Verbosity = VerbosityNewWorld
	default:
		gap := time.Since(state.LastSession)
		o.SinceLastSession = gap.Round(time.Minute).String()
		switch {
		case gap < 24*time.Hour:
			o.Verbosity = VerbosityBrief
		case gap <= 7*24*time.Hour:
			o.Verbosity = VerbosityStandard
		default:
			o.Verbosity = VerbosityFull
		}
	}
	return o, nil
}

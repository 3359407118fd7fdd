// ABOUTME: Cross-session continuity state stored as a JSON file
// ABOUTME: Atomic writes, MRU access tracking, pins, and pending decisions
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/florinutz/narra/internal/narraerr"
)

// DefaultRecentLimit caps the MRU access list.
const DefaultRecentLimit = 100

// PendingDecision is an open question the author parked for later
type PendingDecision struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	EntityIDs   []string  `json:"entity_ids,omitempty"`
}

// State is everything remembered between sessions
type State struct {
	LastSession      time.Time         `json:"last_session,omitempty"`
	PinnedEntities   []string          `json:"pinned_entities,omitempty"`
	RecentAccesses   []string          `json:"recent_accesses,omitempty"`
	PendingDecisions []PendingDecision `json:"pending_decisions,omitempty"`
}

// Manager reads and writes session state
type Manager struct {
	mu    sync.Mutex
	path  string
	limit int
}

// NewManager creates a manager persisting to the given path
func NewManager(path string, recentLimit int) *Manager {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Manager{path: path, limit: recentLimit}
}

// Load reads the state file. A missing file yields a zero state.
func (m *Manager) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) load() (*State, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &state, nil
}

// save writes the state atomically: temp file in the same directory,
// then rename over the target.
func (m *Manager) save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// update loads, mutates, and saves under the lock
func (m *Manager) update(fn func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.load()
	if err != nil {
		return err
	}
	fn(state)
	return m.save(state)
}

// Touch records that a session happened now
func (m *Manager) Touch() error {
	return m.update(func(s *State) {
		s.LastSession = time.Now().UTC()
	})
}

// RecordAccess pushes entity IDs onto the MRU list, most recent first,
// deduplicated, capped at the limit.
func (m *Manager) RecordAccess(entityIDs ...string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return m.update(func(s *State) {
		merged := make([]string, 0, len(entityIDs)+len(s.RecentAccesses))
		seen := map[string]bool{}
		for _, id := range entityIDs {
			if id != "" && !seen[id] {
				seen[id] = true
				merged = append(merged, id)
			}
		}
		for _, id := range s.RecentAccesses {
			if !seen[id] {
				seen[id] = true
				merged = append(merged, id)
			}
		}
		if len(merged) > m.limit {
			merged = merged[:m.limit]
		}
		s.RecentAccesses = merged
	})
}

// Pin adds an entity to the always-surfaced set
func (m *Manager) Pin(entityID string) error {
	return m.update(func(s *State) {
		for _, id := range s.PinnedEntities {
			if id == entityID {
				return
			}
		}
		s.PinnedEntities = append(s.PinnedEntities, entityID)
	})
}

// Unpin removes an entity from the pinned set
func (m *Manager) Unpin(entityID string) error {
	return m.update(func(s *State) {
		out := s.PinnedEntities[:0]
		for _, id := range s.PinnedEntities {
			if id != entityID {
				out = append(out, id)
			}
		}
		s.PinnedEntities = out
	})
}

// AddDecision parks a decision for a later session
func (m *Manager) AddDecision(description string, entityIDs []string) (*PendingDecision, error) {
	if description == "" {
		return nil, narraerr.Validation("decision description must not be empty")
	}
	d := PendingDecision{
		ID:          "decision:" + uuid.NewString(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
		EntityIDs:   entityIDs,
	}
	err := m.update(func(s *State) {
		s.PendingDecisions = append(s.PendingDecisions, d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ResolveDecision removes a pending decision by ID
func (m *Manager) ResolveDecision(decisionID string) error {
	found := false
	err := m.update(func(s *State) {
		out := s.PendingDecisions[:0]
		for _, d := range s.PendingDecisions {
			if d.ID == decisionID {
				found = true
				continue
			}
			out = append(out, d)
		}
		s.PendingDecisions = out
	})
	if err != nil {
		return err
	}
	if !found {
		return narraerr.NotFound("decision", decisionID)
	}
	return nil
}

// ABOUTME: Fixture world and labeled query scenarios for retrieval benchmarks
// ABOUTME: A small harbor-town story with known-relevant entities per query

package retrieval

import (
	"fmt"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/search"
	"github.com/florinutz/narra/internal/storage"
)

// Scenario is one labeled retrieval query
type Scenario struct {
	Name     string      `json:"name"`
	Query    string      `json:"query"`
	Mode     search.Mode `json:"mode"`
	Relevant []string    `json:"relevant"`
}

// SeedFixture writes the benchmark world into storage. Embeddings are
// left stale; run a backfill before semantic scenarios.
func SeedFixture(store *storage.Storage) error {
	characters := []*models.Character{
		{
			ID: "character:vera", Name: "Vera Salt",
			Description: "Harbormaster of Graywater, keeps the tide ledgers and everyone's secrets.",
			Profile: map[string][]string{
				models.TraitSecret: {"smuggles medicine past the blockade"},
			},
		},
		{
			ID: "character:odo", Name: "Odo Finch",
			Description: "A lighthouse keeper who has not left the rock in nine years.",
			Profile: map[string][]string{
				models.TraitWound: {"lost his brother to the reef"},
			},
		},
		{
			ID: "character:mira", Name: "Mira Quill",
			Description: "Customs clerk and amateur cartographer charting the smuggling routes.",
		},
	}
	for _, c := range characters {
		if err := store.Characters.Save(c); err != nil {
			return fmt.Errorf("failed to seed %s: %w", c.ID, err)
		}
	}

	locations := []*models.Location{
		{
			ID: "location:graywater", Name: "Graywater Harbor", LocType: "city",
			Description: "A fog-bound port town living off the tide and the blockade trade.",
		},
		{
			ID: "location:lighthouse", Name: "The Needle Lighthouse", LocType: "building",
			ParentID:    "location:graywater",
			Description: "A lighthouse on the reef rock, reachable only at low tide.",
		},
	}
	for _, l := range locations {
		if err := store.Locations.Save(l); err != nil {
			return fmt.Errorf("failed to seed %s: %w", l.ID, err)
		}
	}

	events := []*models.Event{
		{
			ID: "event:blockade", Title: "The blockade begins", Sequence: 1,
			Description: "Navy ships seal the harbor mouth; medicine runs short within a month.",
		},
		{
			ID: "event:wreck", Title: "Wreck on the reef", Sequence: 2,
			Description: "A grain ship breaks up on the reef below the lighthouse in the night fog.",
		},
	}
	for _, ev := range events {
		if err := store.Events.Save(ev); err != nil {
			return fmt.Errorf("failed to seed %s: %w", ev.ID, err)
		}
	}

	knowledge := []*models.Knowledge{
		{
			ID: "knowledge:routes", CharacterID: "character:mira",
			Fact: "Vera's medicine runs use the low-tide channel past the lighthouse",
		},
	}
	for _, k := range knowledge {
		if err := store.Knowledge.Save(k); err != nil {
			return fmt.Errorf("failed to seed %s: %w", k.ID, err)
		}
		edge := &models.KnowledgeEdge{
			ID:          "knowledge_edge:bench-" + k.ID,
			CharacterID: k.CharacterID,
			KnowledgeID: k.ID,
			Certainty:   models.CertaintySuspects,
		}
		if err := store.Knowledge.AppendEdge(edge); err != nil {
			return fmt.Errorf("failed to seed edge for %s: %w", k.ID, err)
		}
	}

	return nil
}

// Scenarios returns the labeled queries for the fixture world
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:     "keyword exact name",
			Query:    "lighthouse",
			Mode:     search.ModeKeyword,
			Relevant: []string{"location:lighthouse", "character:odo"},
		},
		{
			Name:     "keyword event",
			Query:    "blockade",
			Mode:     search.ModeKeyword,
			Relevant: []string{"event:blockade", "location:graywater"},
		},
		{
			Name:     "semantic medicine smuggling",
			Query:    "who moves medicine past the blockade",
			Mode:     search.ModeSemantic,
			Relevant: []string{"character:vera", "knowledge:routes", "event:blockade"},
		},
		{
			Name:     "semantic reef disaster",
			Query:    "shipwreck on the reef at night",
			Mode:     search.ModeSemantic,
			Relevant: []string{"event:wreck", "location:lighthouse"},
		},
		{
			Name:     "hybrid harbor town",
			Query:    "fog-bound harbor town",
			Mode:     search.ModeHybrid,
			Relevant: []string{"location:graywater"},
		},
		{
			Name:     "hybrid smuggling charts",
			Query:    "charting smuggling routes",
			Mode:     search.ModeHybrid,
			Relevant: []string{"character:mira", "knowledge:routes"},
		},
	}
}

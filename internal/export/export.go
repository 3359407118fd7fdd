// ABOUTME: Whole-world YAML export and import with conflict modes
// ABOUTME: References between entities travel as typed ID strings
package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

// ConflictMode decides what happens when an imported ID already exists
type ConflictMode string

const (
	ConflictError  ConflictMode = "error"
	ConflictSkip   ConflictMode = "skip"
	ConflictUpdate ConflictMode = "update"
)

// World is the YAML document shape: one list per entity type, with
// cross-references by typed ID.
type World struct {
	Characters    []models.Character        `yaml:"characters,omitempty"`
	Locations     []models.Location         `yaml:"locations,omitempty"`
	Events        []models.Event            `yaml:"events,omitempty"`
	Scenes        []models.Scene            `yaml:"scenes,omitempty"`
	Participants  []models.SceneParticipant `yaml:"participants,omitempty"`
	Knowledge     []models.Knowledge        `yaml:"knowledge,omitempty"`
	KnowledgeLog  []models.KnowledgeEdge    `yaml:"knowledge_log,omitempty"`
	Notes         []models.Note             `yaml:"notes,omitempty"`
	Facts         []models.UniverseFact     `yaml:"facts,omitempty"`
	FactLinks     []models.FactLink         `yaml:"fact_links,omitempty"`
	Perceptions   []models.Perception       `yaml:"perceptions,omitempty"`
	Relationships []models.Relationship     `yaml:"relationships,omitempty"`
}

// Service moves worlds in and out of storage
type Service struct {
	store *storage.Storage
}

// NewService creates an export service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Export writes the whole world as one YAML document. Embeddings are
// not exported; a backfill rebuilds them on the other side.
func (s *Service) Export(w io.Writer) error {
	world, err := s.collect()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(world); err != nil {
		return fmt.Errorf("failed to encode world: %w", err)
	}
	return enc.Close()
}

func (s *Service) collect() (*World, error) {
	world := &World{}
	var err error

	if world.Characters, err = s.store.Characters.List(); err != nil {
		return nil, err
	}
	if world.Locations, err = s.store.Locations.List(); err != nil {
		return nil, err
	}
	if world.Events, err = s.store.Events.List(); err != nil {
		return nil, err
	}
	if world.Scenes, err = s.store.Scenes.List(); err != nil {
		return nil, err
	}
	if world.Participants, err = s.store.Scenes.AllParticipants(); err != nil {
		return nil, err
	}
	for _, c := range world.Characters {
		items, err := s.store.Knowledge.ListByCharacter(c.ID)
		if err != nil {
			return nil, err
		}
		world.Knowledge = append(world.Knowledge, items...)
		for _, k := range items {
			edges, err := s.store.Knowledge.EdgeHistory(c.ID, k.ID)
			if err != nil {
				return nil, err
			}
			world.KnowledgeLog = append(world.KnowledgeLog, edges...)
		}
	}
	if world.Notes, err = s.store.Notes.List(); err != nil {
		return nil, err
	}
	if world.Facts, err = s.store.Facts.List(); err != nil {
		return nil, err
	}
	for _, f := range world.Facts {
		links, err := s.store.Facts.Links(f.ID)
		if err != nil {
			return nil, err
		}
		world.FactLinks = append(world.FactLinks, links...)
	}
	if world.Perceptions, err = s.store.Perceptions.ListPerceptions(); err != nil {
		return nil, err
	}
	if world.Relationships, err = s.store.Perceptions.ListRelationships(); err != nil {
		return nil, err
	}

	// Embeddings are machine-local; strip them from the document
	for i := range world.Characters {
		world.Characters[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Locations {
		world.Locations[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Events {
		world.Events[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Scenes {
		world.Scenes[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Knowledge {
		world.Knowledge[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Notes {
		world.Notes[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Perceptions {
		world.Perceptions[i].EmbeddingState = models.EmbeddingState{}
	}
	for i := range world.Relationships {
		world.Relationships[i].EmbeddingState = models.EmbeddingState{}
	}

	return world, nil
}

// ImportStats counts the outcome of an import run
type ImportStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Import reads a YAML world document and writes it into storage.
// Referenced-to entities import before their referencers.
func (s *Service) Import(r io.Reader, mode ConflictMode) (*ImportStats, error) {
	switch mode {
	case ConflictError, ConflictSkip, ConflictUpdate:
	case "":
		mode = ConflictError
	default:
		return nil, narraerr.Validation("unknown on_conflict mode %q", mode)
	}

	var world World
	if err := yaml.NewDecoder(r).Decode(&world); err != nil {
		return nil, narraerr.Wrap(narraerr.KindValidation, err, "failed to parse world document")
	}

	stats := &ImportStats{}
	imp := func(id string, exists func() (bool, error), save func() error) error {
		found, err := exists()
		if err != nil {
			return err
		}
		if found {
			switch mode {
			case ConflictError:
				return narraerr.New(narraerr.KindConflict, "%s already exists", id)
			case ConflictSkip:
				stats.Skipped++
				return nil
			case ConflictUpdate:
				stats.Updated++
				return save()
			}
		}
		stats.Created++
		return save()
	}

	for i := range world.Characters {
		c := &world.Characters[i]
		err := imp(c.ID,
			func() (bool, error) { got, err := s.store.Characters.GetByID(c.ID); return got != nil, err },
			func() error { return s.store.Characters.Save(c) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.Locations {
		l := &world.Locations[i]
		err := imp(l.ID,
			func() (bool, error) { got, err := s.store.Locations.GetByID(l.ID); return got != nil, err },
			func() error { return s.store.Locations.Save(l) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.Events {
		ev := &world.Events[i]
		err := imp(ev.ID,
			func() (bool, error) { got, err := s.store.Events.GetByID(ev.ID); return got != nil, err },
			func() error { return s.store.Events.Save(ev) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.Scenes {
		sc := &world.Scenes[i]
		err := imp(sc.ID,
			func() (bool, error) { got, err := s.store.Scenes.GetByID(sc.ID); return got != nil, err },
			func() error { return s.store.Scenes.Save(sc) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.Participants {
		if err := s.store.Scenes.AddParticipant(&world.Participants[i]); err != nil {
			return nil, err
		}
	}
	for i := range world.Knowledge {
		k := &world.Knowledge[i]
		err := imp(k.ID,
			func() (bool, error) { got, err := s.store.Knowledge.GetByID(k.ID); return got != nil, err },
			func() error { return s.store.Knowledge.Save(k) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.KnowledgeLog {
		if err := s.store.Knowledge.AppendEdge(&world.KnowledgeLog[i]); err != nil {
			return nil, err
		}
	}
	for i := range world.Notes {
		n := &world.Notes[i]
		err := imp(n.ID,
			func() (bool, error) { got, err := s.store.Notes.GetByID(n.ID); return got != nil, err },
			func() error { return s.store.Notes.Save(n) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.Facts {
		f := &world.Facts[i]
		err := imp(f.ID,
			func() (bool, error) { got, err := s.store.Facts.GetByID(f.ID); return got != nil, err },
			func() error { return s.store.Facts.Save(f) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.FactLinks {
		if err := s.store.Facts.Link(&world.FactLinks[i]); err != nil {
			return nil, err
		}
	}
	for i := range world.Perceptions {
		p := &world.Perceptions[i]
		err := imp(p.ID,
			func() (bool, error) { got, err := s.store.Perceptions.GetPerception(p.ID); return got != nil, err },
			func() error { return s.store.Perceptions.SavePerception(p) })
		if err != nil {
			return nil, err
		}
	}
	for i := range world.Relationships {
		rel := &world.Relationships[i]
		err := imp(rel.ID,
			func() (bool, error) { got, err := s.store.Perceptions.GetRelationship(rel.ID); return got != nil, err },
			func() error { return s.store.Perceptions.SaveRelationship(rel) })
		if err != nil {
			return nil, err
		}
	}

	return stats, nil
}

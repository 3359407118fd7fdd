// ABOUTME: Structural checks: timeline ordering and relationship shape
// ABOUTME: Catches knowledge used before learning and malformed edges
package consistency

import (
	"context"
	"fmt"
	"strings"

	"github.com/florinutz/narra/internal/models"
)

// checkTimeline flags scenes where a participant's knowledge shows up
// before the event where they learned it.
func (s *Service) checkTimeline(ctx context.Context, targets []target) ([]Violation, error) {
	scenes, err := s.store.Scenes.List()
	if err != nil {
		return nil, err
	}
	events, err := s.store.Events.List()
	if err != nil {
		return nil, err
	}
	eventSeq := map[string]int64{}
	for _, ev := range events {
		eventSeq[ev.ID] = ev.Sequence
	}

	sceneText := map[string]string{}
	for _, t := range targets {
		if t.entityType == models.TypeScene {
			sceneText[t.id] = t.text
		}
	}

	var out []Violation
	for _, sc := range scenes {
		if ctx.Err() != nil {
			return out, nil
		}
		sceneSeq, ok := eventSeq[sc.EventID]
		if !ok {
			continue
		}

		participants, err := s.store.Scenes.Participants(sc.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range participants {
			edges, err := s.store.Knowledge.LatestEdges(p.CharacterID)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if e.EventID == "" {
					continue
				}
				learnedSeq, ok := eventSeq[e.EventID]
				if !ok || learnedSeq <= sceneSeq {
					continue
				}

				k, err := s.store.Knowledge.GetByID(e.KnowledgeID)
				if err != nil || k == nil {
					continue
				}
				hits, err := matchKeywords(factKeywordsFromText(k.Fact), sceneText[sc.ID])
				if err != nil {
					return nil, err
				}
				if len(hits) == 0 {
					continue
				}

				name := s.store.EntityNameOrID(p.CharacterID)
				message := fmt.Sprintf("%s appears in %s before learning %q", name, sc.Title, k.Fact)
				out = append(out, Violation{
					Severity:     s.timelineSeverity(e.KnowledgeID),
					EntityID:     sc.ID,
					EntityType:   string(models.TypeScene),
					Message:      message,
					Confidence:   0.6,
					SuggestedFix: "move the scene later on the timeline or adjust the learning event",
				})
			}
		}
	}
	return out, nil
}

// timelineSeverity escalates when the knowledge is pinned by a strict fact
func (s *Service) timelineSeverity(knowledgeID string) Severity {
	facts, err := s.store.Facts.ListByEntity(knowledgeID)
	if err == nil {
		for _, f := range facts {
			if f.EnforcementLevel == models.EnforcementStrict {
				return SeverityCritical
			}
		}
	}
	return SeverityWarning
}

// checkRelationships flags circular parent/child edges and one-sided
// feelings between characters.
func (s *Service) checkRelationships() ([]Violation, error) {
	relationships, err := s.store.Perceptions.ListRelationships()
	if err != nil {
		return nil, err
	}

	var out []Violation

	// Circular parent/child: both directions claim the same hierarchy role
	type direction struct{ from, to string }
	hierarchical := map[direction]string{}
	for _, r := range relationships {
		rel := strings.ToLower(r.RelType)
		if strings.Contains(rel, "parent") || strings.Contains(rel, "child") {
			kind := "child"
			if strings.Contains(rel, "parent") {
				kind = "parent"
			}
			hierarchical[direction{r.FromID, r.ToID}] = kind
		}
	}
	reported := map[direction]bool{}
	for d, kind := range hierarchical {
		reverse := direction{d.to, d.from}
		if hierarchical[reverse] != kind || reported[reverse] {
			continue
		}
		reported[d] = true
		out = append(out, Violation{
			Severity:   SeverityWarning,
			EntityID:   d.from,
			EntityType: string(models.TypeCharacter),
			Message: fmt.Sprintf("circular %s relationship between %s and %s",
				kind, s.store.EntityNameOrID(d.from), s.store.EntityNameOrID(d.to)),
			Confidence:   0.9,
			SuggestedFix: "drop one direction of the parent/child pair",
		})
	}

	// Unreciprocated feelings on perceives edges
	perceptions, err := s.store.Perceptions.ListPerceptions()
	if err != nil {
		return nil, err
	}
	hasFeelings := map[direction]bool{}
	for _, p := range perceptions {
		if p.Feelings != "" {
			hasFeelings[direction{p.ObserverID, p.TargetID}] = true
		}
	}
	for _, p := range perceptions {
		if p.Feelings == "" || hasFeelings[direction{p.TargetID, p.ObserverID}] {
			continue
		}
		out = append(out, Violation{
			Severity:   s.asymmetrySeverity(p.ObserverID, p.TargetID),
			EntityID:   p.ID,
			EntityType: string(models.TypePerception),
			Message: fmt.Sprintf("%s holds unreciprocated feelings toward %s",
				s.store.EntityNameOrID(p.ObserverID), s.store.EntityNameOrID(p.TargetID)),
			Confidence:   0.5,
			SuggestedFix: "add the reverse perception or record the asymmetry deliberately",
		})
	}

	return out, nil
}

// asymmetrySeverity grades one-sided feelings by the relationship kind:
// one-sided family or professional bonds are suspicious, one-sided
// romance and rivalry are ordinary drama.
func (s *Service) asymmetrySeverity(a, b string) Severity {
	for _, kind := range []string{"family", "professional"} {
		if ok, err := s.store.Perceptions.HasRelType(a, b, kind); err == nil && ok {
			return SeverityWarning
		}
	}
	return SeverityInfo
}

// factKeywordsFromText extracts keywords from a bare proposition
func factKeywordsFromText(text string) []string {
	return factKeywords(&models.UniverseFact{Title: text})
}

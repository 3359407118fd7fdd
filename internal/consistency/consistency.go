// ABOUTME: Consistency checking of entities against universe facts
// ABOUTME: Scoped fact evaluation by keyword heuristic, bounded by a deadline
package consistency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

// checkDeadline bounds a full consistency run. A run that exceeds it
// reports a single timed_out violation instead of failing.
const checkDeadline = 2 * time.Second

// Severity grades a violation
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Violation is one detected inconsistency
type Violation struct {
	Severity     Severity `json:"severity"`
	EntityID     string   `json:"entity,omitempty"`
	EntityType   string   `json:"entity_type,omitempty"`
	FactID       string   `json:"fact,omitempty"`
	Message      string   `json:"message"`
	Confidence   float64  `json:"confidence,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
	Intentional  bool     `json:"intentional,omitempty"`
}

// Report is the outcome of a consistency run
type Report struct {
	Violations      []Violation `json:"violations"`
	CheckedEntities int         `json:"checked_entities"`
	CheckedFacts    int         `json:"checked_facts"`
}

// Service checks world state against universe facts
type Service struct {
	store *storage.Storage
}

// NewService creates a consistency service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// target is one entity prepared for checking
type target struct {
	id          string
	entityType  models.EntityType
	text        string
	characterID string
	sequence    *int64
}

// CheckAll runs every check across the whole world
func (s *Service) CheckAll(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, checkDeadline)
	defer cancel()

	targets, err := s.loadTargets()
	if err != nil {
		return nil, err
	}
	facts, err := s.store.Facts.List()
	if err != nil {
		return nil, err
	}

	report := &Report{
		CheckedEntities: len(targets),
		CheckedFacts:    len(facts),
	}
	for i := range targets {
		if ctx.Err() != nil {
			return timedOut(report), nil
		}
		violations, err := s.checkTarget(ctx, &targets[i])
		if err != nil {
			if narraerr.Is(err, narraerr.KindTimedOut) {
				return timedOut(report), nil
			}
			return nil, err
		}
		report.Violations = append(report.Violations, violations...)
	}

	if ctx.Err() != nil {
		return timedOut(report), nil
	}
	timeline, err := s.checkTimeline(ctx, targets)
	if err != nil {
		return nil, err
	}
	report.Violations = append(report.Violations, timeline...)

	if ctx.Err() != nil {
		return timedOut(report), nil
	}
	relational, err := s.checkRelationships()
	if err != nil {
		return nil, err
	}
	report.Violations = append(report.Violations, relational...)

	return report, nil
}

// CheckEntity checks one entity against its applicable facts
func (s *Service) CheckEntity(ctx context.Context, entityID string) ([]Violation, error) {
	ctx, cancel := context.WithTimeout(ctx, checkDeadline)
	defer cancel()

	targets, err := s.loadTargets()
	if err != nil {
		return nil, err
	}
	for i := range targets {
		if targets[i].id == entityID {
			return s.checkTarget(ctx, &targets[i])
		}
	}
	return nil, narraerr.NotFound("entity", entityID)
}

// CheckDraft evaluates proposed text against the applicable facts before
// it is written, so strict violations can block the mutation. entityID
// may be empty for a not-yet-created entity.
func (s *Service) CheckDraft(entityType models.EntityType, entityID, characterID, text string) ([]Violation, error) {
	t := target{
		id:          entityID,
		entityType:  entityType,
		text:        text,
		characterID: characterID,
	}
	return s.checkTarget(context.Background(), &t)
}

// HasCritical reports whether any violation is critical and not
// intentional dramatic irony.
func HasCritical(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityCritical && !v.Intentional {
			return true
		}
	}
	return false
}

func timedOut(report *Report) *Report {
	report.Violations = []Violation{{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("consistency check timed out after %s; results are incomplete", checkDeadline),
	}}
	return report
}

// checkTarget evaluates one entity against every applicable fact,
// respecting the caller's deadline between facts.
func (s *Service) checkTarget(ctx context.Context, t *target) ([]Violation, error) {
	facts, err := s.applicableFacts(t)
	if err != nil {
		return nil, err
	}

	var out []Violation
	for i := range facts {
		if err := ctx.Err(); err != nil {
			return nil, narraerr.Wrap(narraerr.KindTimedOut, err,
				"consistency check of %s ran past the deadline", t.id)
		}
		f := &facts[i]
		if !s.scopeAdmits(f, t) {
			continue
		}
		v, err := s.evaluate(f, t)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// applicableFacts returns the facts linked to the entity plus every
// strict fact, which applies globally.
func (s *Service) applicableFacts(t *target) ([]models.UniverseFact, error) {
	linked, err := s.store.Facts.ListByEntity(t.id)
	if err != nil {
		return nil, err
	}
	strict, err := s.store.Facts.ListByEnforcement(models.EnforcementStrict)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := make([]models.UniverseFact, 0, len(linked)+len(strict))
	for _, f := range append(linked, strict...) {
		if !seen[f.ID] {
			seen[f.ID] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// scopeAdmits applies the POV and temporal scopes as an intersection
func (s *Service) scopeAdmits(f *models.UniverseFact, t *target) bool {
	if f.Scope == nil {
		return true
	}
	if pov := f.Scope.Pov; pov != nil && !s.povAdmits(pov, t) {
		return false
	}
	if ts := f.Scope.Temporal; ts != nil && !s.temporalAdmits(ts, t) {
		return false
	}
	return true
}

func (s *Service) povAdmits(pov *models.PovScope, t *target) bool {
	// POV scopes only constrain entities with a character context
	if t.characterID == "" {
		return true
	}
	switch pov.Kind {
	case models.PovCharacter:
		return t.characterID == pov.CharacterID ||
			strings.HasSuffix(t.characterID, pov.CharacterID)
	case models.PovGroup:
		c, err := s.store.Characters.GetByID(t.characterID)
		if err != nil || c == nil {
			return false
		}
		for _, role := range c.Roles {
			if strings.EqualFold(role, pov.Group) {
				return true
			}
		}
		return false
	case models.PovExceptCharacters:
		for _, id := range pov.ExceptIDs {
			if t.characterID == id {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// temporalAdmits checks the entity's timeline position against the fact
// window [from.sequence, until.sequence). Entities without a timeline
// position always pass.
func (s *Service) temporalAdmits(ts *models.TemporalScope, t *target) bool {
	if t.sequence == nil {
		return true
	}
	if ts.ValidFromEventID != "" {
		from, err := s.store.Events.GetByID(ts.ValidFromEventID)
		if err == nil && from != nil && *t.sequence < from.Sequence {
			return false
		}
	}
	if ts.ValidUntilEventID != "" {
		until, err := s.store.Events.GetByID(ts.ValidUntilEventID)
		if err == nil && until != nil && *t.sequence >= until.Sequence {
			return false
		}
	}
	return true
}

// evaluate applies the keyword heuristic: a prohibitive fact is violated
// by an un-negated mention of its subject, a declarative fact by a
// negated one.
func (s *Service) evaluate(f *models.UniverseFact, t *target) (*Violation, error) {
	keywords := factKeywords(f)
	if len(keywords) == 0 {
		return nil, nil
	}
	hits, err := matchKeywords(keywords, t.text)
	if err != nil {
		return nil, err
	}

	forbidden := prohibits(f)
	conflicting := 0
	for _, h := range hits {
		if forbidden && !h.negated {
			conflicting++
		}
		if !forbidden && h.negated {
			conflicting++
		}
	}
	if conflicting == 0 {
		return nil, nil
	}

	confidence := 0.3 + float64(conflicting)/float64(len(keywords))*0.6
	message := fmt.Sprintf("%s contradicts %q", t.id, f.Title)

	// A character believing something against the facts is dramatic
	// irony, not an error in the world
	intentional := t.entityType == models.TypeKnowledge

	return &Violation{
		Severity:     severityFor(f, confidence, intentional),
		EntityID:     t.id,
		EntityType:   string(t.entityType),
		FactID:       f.ID,
		Message:      message,
		Confidence:   confidence,
		SuggestedFix: suggestedFix(message),
		Intentional:  intentional,
	}, nil
}

func severityFor(f *models.UniverseFact, confidence float64, intentional bool) Severity {
	switch {
	case intentional:
		return SeverityInfo
	case f.EnforcementLevel == models.EnforcementStrict && confidence > 0.5:
		return SeverityCritical
	case f.EnforcementLevel == models.EnforcementWarning && confidence > 0.5:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// suggestedFix maps a violation message to a concrete remediation
func suggestedFix(message string) string {
	switch {
	case strings.Contains(message, "contradicts"):
		return "revise the entity's text or narrow the fact's scope"
	case strings.Contains(message, "before learning"):
		return "move the scene later on the timeline or adjust the learning event"
	case strings.Contains(message, "circular"):
		return "drop one direction of the parent/child pair"
	case strings.Contains(message, "unreciprocated"):
		return "add the reverse perception or record the asymmetry deliberately"
	default:
		return ""
	}
}

// loadTargets flattens the world into checkable entities with their text
// and timeline context
func (s *Service) loadTargets() ([]target, error) {
	var out []target

	characters, err := s.store.Characters.List()
	if err != nil {
		return nil, err
	}
	for _, c := range characters {
		var sb strings.Builder
		sb.WriteString(c.Name + " " + c.Description)
		for _, entries := range c.Profile {
			sb.WriteString(" " + strings.Join(entries, " "))
		}
		out = append(out, target{
			id: c.ID, entityType: models.TypeCharacter,
			text: sb.String(), characterID: c.ID,
		})
	}

	locations, err := s.store.Locations.List()
	if err != nil {
		return nil, err
	}
	for _, l := range locations {
		out = append(out, target{
			id: l.ID, entityType: models.TypeLocation,
			text: l.Name + " " + l.Description,
		})
	}

	events, err := s.store.Events.List()
	if err != nil {
		return nil, err
	}
	eventSeq := map[string]int64{}
	for _, ev := range events {
		seq := ev.Sequence
		eventSeq[ev.ID] = seq
		out = append(out, target{
			id: ev.ID, entityType: models.TypeEvent,
			text: ev.Title + " " + ev.Description, sequence: &seq,
		})
	}

	scenes, err := s.store.Scenes.List()
	if err != nil {
		return nil, err
	}
	for _, sc := range scenes {
		t := target{
			id: sc.ID, entityType: models.TypeScene,
			text: sc.Title + " " + sc.Summary,
		}
		if seq, ok := eventSeq[sc.EventID]; ok {
			s := seq
			t.sequence = &s
		}
		out = append(out, t)
	}

	for _, c := range characters {
		items, err := s.store.Knowledge.ListByCharacter(c.ID)
		if err != nil {
			return nil, err
		}
		for _, k := range items {
			out = append(out, target{
				id: k.ID, entityType: models.TypeKnowledge,
				text: k.Fact, characterID: k.CharacterID,
			})
		}
	}

	notes, err := s.store.Notes.List()
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		out = append(out, target{
			id: n.ID, entityType: models.TypeNote,
			text: n.Title + " " + n.Body,
		})
	}

	return out, nil
}

// ABOUTME: Composite text renderers, one per embeddable entity type
// ABOUTME: Deterministic sentence-style English fed to the embedding backend
package composite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

// Renderer builds composite texts from an entity and its graph context
type Renderer struct {
	store *storage.Storage
}

// NewRenderer creates a Renderer over the given storage
func NewRenderer(store *storage.Storage) *Renderer {
	return &Renderer{store: store}
}

// Render produces the composite text for any embeddable entity. The output
// is deterministic: the same graph state always yields the same bytes.
func (r *Renderer) Render(entityType models.EntityType, id string) (string, error) {
	switch entityType {
	case models.TypeCharacter:
		return r.renderCharacter(id)
	case models.TypeLocation:
		return r.renderLocation(id)
	case models.TypeEvent:
		return r.renderEvent(id)
	case models.TypeScene:
		return r.renderScene(id)
	case models.TypeKnowledge:
		return r.renderKnowledge(id)
	case models.TypeNote:
		return r.renderNote(id)
	case models.TypePerception:
		return r.renderPerception(id)
	case models.TypeRelationship:
		return r.renderRelationship(id)
	default:
		return "", narraerr.Validation("entity type %q has no composite text", entityType)
	}
}

func (r *Renderer) renderCharacter(id string) (string, error) {
	c, err := r.store.Characters.GetByID(id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", narraerr.NotFound("character", id)
	}

	var b strings.Builder
	if len(c.Roles) > 0 {
		fmt.Fprintf(&b, "%s is a character who is a %s.", c.Name, joinNatural(c.Roles))
	} else {
		fmt.Fprintf(&b, "%s is a character.", c.Name)
	}
	if len(c.Aliases) > 0 {
		fmt.Fprintf(&b, " Also known as %s.", joinNatural(c.Aliases))
	}
	if c.Description != "" {
		b.WriteString(" " + c.Description)
	}

	for _, key := range sortedKeys(c.Profile) {
		vals := c.Profile[key]
		if len(vals) == 0 {
			continue
		}
		fmt.Fprintf(&b, " %s: %s.", profileLabel(key), strings.Join(vals, "; "))
	}

	edges, err := r.store.Knowledge.LatestEdges(id)
	if err != nil {
		return "", err
	}
	for _, e := range edges {
		k, err := r.store.Knowledge.GetByID(e.KnowledgeID)
		if err != nil {
			return "", err
		}
		if k == nil {
			continue
		}
		b.WriteString(" " + KnowledgePhrase(c.Name, e.Certainty, k.Fact))
	}

	return b.String(), nil
}

func (r *Renderer) renderLocation(id string) (string, error) {
	l, err := r.store.Locations.GetByID(id)
	if err != nil {
		return "", err
	}
	if l == nil {
		return "", narraerr.NotFound("location", id)
	}

	var b strings.Builder
	if l.LocType != "" {
		fmt.Fprintf(&b, "%s is a %s.", l.Name, l.LocType)
	} else {
		fmt.Fprintf(&b, "%s is a location.", l.Name)
	}
	if l.ParentID != "" {
		parent, err := r.store.Locations.GetByID(l.ParentID)
		if err != nil {
			return "", err
		}
		if parent != nil {
			fmt.Fprintf(&b, " It lies within %s.", parent.Name)
		}
	}
	if l.Description != "" {
		b.WriteString(" " + l.Description)
	}
	return b.String(), nil
}

func (r *Renderer) renderEvent(id string) (string, error) {
	e, err := r.store.Events.GetByID(id)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", narraerr.NotFound("event", id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s.", e.Title)
	if e.Date != "" {
		fmt.Fprintf(&b, " It happens on %s.", e.Date)
	}
	if e.Description != "" {
		b.WriteString(" " + e.Description)
	}
	return b.String(), nil
}

func (r *Renderer) renderScene(id string) (string, error) {
	sc, err := r.store.Scenes.GetByID(id)
	if err != nil {
		return "", err
	}
	if sc == nil {
		return "", narraerr.NotFound("scene", id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s.", sc.Title)

	if sc.EventID != "" {
		ev, err := r.store.Events.GetByID(sc.EventID)
		if err != nil {
			return "", err
		}
		if ev != nil {
			fmt.Fprintf(&b, " Part of %s.", ev.Title)
		}
	}
	if sc.PrimaryLocationID != "" {
		loc, err := r.store.Locations.GetByID(sc.PrimaryLocationID)
		if err != nil {
			return "", err
		}
		if loc != nil {
			fmt.Fprintf(&b, " Set in %s.", loc.Name)
		}
	}

	parts, err := r.store.Scenes.Participants(id)
	if err != nil {
		return "", err
	}
	var names []string
	for _, p := range parts {
		c, err := r.store.Characters.GetByID(p.CharacterID)
		if err != nil {
			return "", err
		}
		if c != nil {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintf(&b, " Featuring %s.", joinNatural(names))
	}
	if sc.Summary != "" {
		b.WriteString(" " + sc.Summary)
	}
	return b.String(), nil
}

func (r *Renderer) renderKnowledge(id string) (string, error) {
	k, err := r.store.Knowledge.GetByID(id)
	if err != nil {
		return "", err
	}
	if k == nil {
		return "", narraerr.NotFound("knowledge", id)
	}
	return k.Fact, nil
}

func (r *Renderer) renderNote(id string) (string, error) {
	n, err := r.store.Notes.GetByID(id)
	if err != nil {
		return "", err
	}
	if n == nil {
		return "", narraerr.NotFound("note", id)
	}
	if n.Body == "" {
		return n.Title, nil
	}
	return n.Title + ". " + n.Body, nil
}

func (r *Renderer) renderPerception(id string) (string, error) {
	p, err := r.store.Perceptions.GetPerception(id)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", narraerr.NotFound("perception", id)
	}

	observer, err := r.store.Characters.GetByID(p.ObserverID)
	if err != nil {
		return "", err
	}
	target, err := r.store.Characters.GetByID(p.TargetID)
	if err != nil {
		return "", err
	}
	observerName := nameOr(observer, p.ObserverID)
	targetName := nameOr(target, p.TargetID)

	var b strings.Builder
	if len(p.RelTypes) > 0 {
		fmt.Fprintf(&b, "%s sees %s as %s.", observerName, targetName, joinNatural(p.RelTypes))
	} else {
		fmt.Fprintf(&b, "%s perceives %s.", observerName, targetName)
	}
	if p.Perception != "" {
		b.WriteString(" " + p.Perception)
	}
	if p.Feelings != "" {
		fmt.Fprintf(&b, " Feelings: %s.", p.Feelings)
	}
	if p.TensionLevel != nil {
		fmt.Fprintf(&b, " Tension level: %d/10.", *p.TensionLevel)
	}
	if p.HistoryNotes != "" {
		fmt.Fprintf(&b, " History: %s.", p.HistoryNotes)
	}
	return b.String(), nil
}

func (r *Renderer) renderRelationship(id string) (string, error) {
	rel, err := r.store.Perceptions.GetRelationship(id)
	if err != nil {
		return "", err
	}
	if rel == nil {
		return "", narraerr.NotFound("relationship", id)
	}

	from, err := r.store.Characters.GetByID(rel.FromID)
	if err != nil {
		return "", err
	}
	to, err := r.store.Characters.GetByID(rel.ToID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s of %s.", nameOr(from, rel.FromID), rel.RelType, nameOr(to, rel.ToID))
	if rel.Label != "" {
		b.WriteString(" " + rel.Label)
	}
	return b.String(), nil
}

// KnowledgePhrase renders one epistemic statement in natural English
func KnowledgePhrase(name string, certainty models.Certainty, fact string) string {
	fact = strings.TrimSuffix(fact, ".")
	switch certainty {
	case models.CertaintyKnows:
		return fmt.Sprintf("%s knows that %s.", name, fact)
	case models.CertaintySuspects:
		return fmt.Sprintf("%s suspects that %s.", name, fact)
	case models.CertaintyBelievesWrongly:
		return fmt.Sprintf("%s wrongly believes that %s.", name, fact)
	case models.CertaintyDenies:
		return fmt.Sprintf("%s denies that %s.", name, fact)
	case models.CertaintyUncertain:
		return fmt.Sprintf("%s is uncertain whether %s.", name, fact)
	default:
		return fmt.Sprintf("%s assumes that %s.", name, fact)
	}
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

func profileLabel(key string) string {
	switch key {
	case models.TraitWound:
		return "Wounds"
	case models.TraitDesireConscious:
		return "Conscious desires"
	case models.TraitDesireUnconscious:
		return "Unconscious desires"
	case models.TraitContradiction:
		return "Contradictions"
	case models.TraitSecret:
		return "Secrets"
	default:
		label := strings.ReplaceAll(key, "_", " ")
		if label == "" {
			return label
		}
		return strings.ToUpper(label[:1]) + label[1:]
	}
}

func nameOr(c *models.Character, fallback string) string {
	if c != nil {
		return c.Name
	}
	return fallback
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

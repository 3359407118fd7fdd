// ABOUTME: Write-side operation handlers: creates, updates, deletes
// ABOUTME: Mutations run the consistency gate before touching storage
package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/florinutz/narra/internal/backfill"
	"github.com/florinutz/narra/internal/consistency"
	"github.com/florinutz/narra/internal/export"
	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
)

func newID(entityType models.EntityType) string {
	return string(entityType) + ":" + uuid.NewString()
}

// gate runs the consistency gate on proposed prose. Critical violations
// against strict facts block the write; lesser ones come back as hints.
func (d *Dispatcher) gate(entityType models.EntityType, entityID, characterID, text string) ([]string, error) {
	violations, err := d.checker.CheckDraft(entityType, entityID, characterID, text)
	if err != nil {
		return nil, err
	}
	if consistency.HasCritical(violations) {
		return nil, narraerr.New(narraerr.KindConsistency,
			"%s violates a strict universe fact: %s", entityID, violations[0].Message)
	}
	var hints []string
	for _, v := range violations {
		hints = append(hints, v.Message)
	}
	return hints, nil
}

// characterProse flattens everything the gate should read for a
// character: name, description, aliases, roles, and profile entries.
func characterProse(ch *models.Character) string {
	var sb strings.Builder
	sb.WriteString(ch.Name)
	sb.WriteString(" ")
	sb.WriteString(ch.Description)
	for _, a := range ch.Aliases {
		sb.WriteString(" ")
		sb.WriteString(a)
	}
	for _, r := range ch.Roles {
		sb.WriteString(" ")
		sb.WriteString(r)
	}
	for _, entries := range ch.Profile {
		for _, e := range entries {
			sb.WriteString(" ")
			sb.WriteString(e)
		}
	}
	return sb.String()
}

func (d *Dispatcher) handleCreateCharacter(ctx context.Context, c *call) (any, []string, []string, error) {
	name, err := c.params.requireStr("name")
	if err != nil {
		return nil, nil, nil, err
	}
	ch := &models.Character{
		ID:          newID(models.TypeCharacter),
		Name:        name,
		Aliases:     c.params.strs("aliases"),
		Roles:       c.params.strs("roles"),
		Description: c.params.strOr("description", ""),
		Profile:     c.params.strMap("profile"),
	}
	hints, err := d.gate(models.TypeCharacter, ch.ID, ch.ID, characterProse(ch))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Characters.Save(ch); err != nil {
		return nil, nil, nil, err
	}
	return ch, []string{ch.ID}, hints, nil
}

func (d *Dispatcher) handleCreateLocation(ctx context.Context, c *call) (any, []string, []string, error) {
	name, err := c.params.requireStr("name")
	if err != nil {
		return nil, nil, nil, err
	}
	l := &models.Location{
		ID:          newID(models.TypeLocation),
		Name:        name,
		Description: c.params.strOr("description", ""),
		LocType:     c.params.strOr("loc_type", ""),
		ParentID:    c.params.strOr("parent_id", ""),
	}
	if l.ParentID != "" {
		parent, err := d.store.Locations.GetByID(l.ParentID)
		if err != nil {
			return nil, nil, nil, err
		}
		if parent == nil {
			return nil, nil, nil, narraerr.New(narraerr.KindReferential,
				"parent location %s does not exist", l.ParentID)
		}
	}
	hints, err := d.gate(models.TypeLocation, l.ID, "", name+" "+l.Description)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Locations.Save(l); err != nil {
		return nil, nil, nil, err
	}
	return l, []string{l.ID}, hints, nil
}

func (d *Dispatcher) handleCreateEvent(ctx context.Context, c *call) (any, []string, []string, error) {
	title, err := c.params.requireStr("title")
	if err != nil {
		return nil, nil, nil, err
	}
	sequence := c.params.intPtr("sequence")
	ev := &models.Event{
		ID:            newID(models.TypeEvent),
		Title:         title,
		Description:   c.params.strOr("description", ""),
		Date:          c.params.strOr("date", ""),
		DatePrecision: c.params.strOr("date_precision", ""),
	}
	if sequence != nil {
		ev.Sequence = int64(*sequence)
	} else {
		// Append to the end of the timeline
		maxSeq, err := d.store.Events.MaxSequence()
		if err != nil {
			return nil, nil, nil, err
		}
		ev.Sequence = maxSeq + 1
	}
	hints, err := d.gate(models.TypeEvent, ev.ID, "", title+" "+ev.Description)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Events.Save(ev); err != nil {
		return nil, nil, nil, err
	}
	return ev, []string{ev.ID}, hints, nil
}

func (d *Dispatcher) handleCreateScene(ctx context.Context, c *call) (any, []string, []string, error) {
	title, err := c.params.requireStr("title")
	if err != nil {
		return nil, nil, nil, err
	}
	eventID, err := c.params.requireStr("event_id")
	if err != nil {
		return nil, nil, nil, err
	}
	ev, err := d.store.Events.GetByID(eventID)
	if err != nil {
		return nil, nil, nil, err
	}
	if ev == nil {
		return nil, nil, nil, narraerr.New(narraerr.KindReferential, "event %s does not exist", eventID)
	}

	sc := &models.Scene{
		ID:                 newID(models.TypeScene),
		Title:              title,
		Summary:            c.params.strOr("summary", ""),
		EventID:            eventID,
		PrimaryLocationID:  c.params.strOr("location_id", ""),
		SecondaryLocations: c.params.strs("secondary_locations"),
	}
	hints, err := d.gate(models.TypeScene, sc.ID, "", title+" "+sc.Summary)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Scenes.Save(sc); err != nil {
		return nil, nil, nil, err
	}

	accessed := []string{sc.ID, eventID}
	for _, ref := range c.params.strs("participants") {
		ch, err := d.store.ResolveCharacter(ref)
		if err != nil {
			return nil, nil, nil, err
		}
		p := &models.SceneParticipant{CharacterID: ch.ID, SceneID: sc.ID}
		if err := d.store.Scenes.AddParticipant(p); err != nil {
			return nil, nil, nil, err
		}
		accessed = append(accessed, ch.ID)
	}
	return sc, accessed, hints, nil
}

func (d *Dispatcher) handleRecordKnowledge(ctx context.Context, c *call) (any, []string, []string, error) {
	ref, err := c.params.requireStr("character_id")
	if err != nil {
		return nil, nil, nil, err
	}
	fact, err := c.params.requireStr("fact")
	if err != nil {
		return nil, nil, nil, err
	}
	ch, err := d.store.ResolveCharacter(ref)
	if err != nil {
		return nil, nil, nil, err
	}

	certainty := models.Certainty(c.params.strOr("certainty", string(models.CertaintyKnows)))
	switch certainty {
	case models.CertaintyKnows, models.CertaintySuspects, models.CertaintyBelievesWrongly,
		models.CertaintyDenies, models.CertaintyUncertain, models.CertaintyUnknown:
	default:
		return nil, nil, nil, narraerr.Validation("unknown certainty %q", certainty)
	}

	// Knowledge is never gated: wrong beliefs are dramatic irony
	k := &models.Knowledge{
		ID:          newID(models.TypeKnowledge),
		CharacterID: ch.ID,
		Fact:        fact,
	}
	if err := d.store.Knowledge.Save(k); err != nil {
		return nil, nil, nil, err
	}
	edge := &models.KnowledgeEdge{
		ID:              "knowledge_edge:" + uuid.NewString(),
		CharacterID:     ch.ID,
		KnowledgeID:     k.ID,
		Certainty:       certainty,
		LearningMethod:  models.LearningMethod(c.params.strOr("learning_method", string(models.LearnedInitial))),
		EventID:         c.params.strOr("event_id", ""),
		SourceCharacter: c.params.strOr("source_character", ""),
	}
	if err := d.store.Knowledge.AppendEdge(edge); err != nil {
		return nil, nil, nil, err
	}

	result := map[string]any{"knowledge": k, "edge": edge}
	return result, []string{ch.ID, k.ID}, nil, nil
}

// handleUpdate applies partial field updates to any entity
func (d *Dispatcher) handleUpdate(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := ids.Parse(entityID)
	if err != nil {
		return nil, nil, nil, narraerr.Validation("invalid entity id %q", entityID)
	}
	fields := c.params.sub("fields")
	if fields == nil {
		return nil, nil, nil, narraerr.Validation("missing required parameter \"fields\"")
	}

	switch models.EntityType(id.Table) {
	case models.TypeCharacter:
		ch, err := d.store.Characters.GetByID(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		if ch == nil {
			return nil, nil, nil, narraerr.NotFound("character", entityID)
		}
		ch.Name = fields.strOr("name", ch.Name)
		ch.Description = fields.strOr("description", ch.Description)
		if v := fields.strs("aliases"); v != nil {
			ch.Aliases = v
		}
		if v := fields.strs("roles"); v != nil {
			ch.Roles = v
		}
		if v := fields.strMap("profile"); v != nil {
			ch.Profile = v
		}
		hints, err := d.gate(models.TypeCharacter, ch.ID, ch.ID, characterProse(ch))
		if err != nil {
			return nil, nil, nil, err
		}
		return ch, []string{ch.ID}, hints, d.store.Characters.Save(ch)

	case models.TypeLocation:
		l, err := d.store.Locations.GetByID(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		if l == nil {
			return nil, nil, nil, narraerr.NotFound("location", entityID)
		}
		l.Name = fields.strOr("name", l.Name)
		l.Description = fields.strOr("description", l.Description)
		l.LocType = fields.strOr("loc_type", l.LocType)
		l.ParentID = fields.strOr("parent_id", l.ParentID)
		hints, err := d.gate(models.TypeLocation, l.ID, "", l.Name+" "+l.Description)
		if err != nil {
			return nil, nil, nil, err
		}
		return l, []string{l.ID}, hints, d.store.Locations.Save(l)

	case models.TypeEvent:
		ev, err := d.store.Events.GetByID(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		if ev == nil {
			return nil, nil, nil, narraerr.NotFound("event", entityID)
		}
		ev.Title = fields.strOr("title", ev.Title)
		ev.Description = fields.strOr("description", ev.Description)
		ev.Date = fields.strOr("date", ev.Date)
		if seq := fields.intPtr("sequence"); seq != nil {
			ev.Sequence = int64(*seq)
		}
		hints, err := d.gate(models.TypeEvent, ev.ID, "", ev.Title+" "+ev.Description)
		if err != nil {
			return nil, nil, nil, err
		}
		return ev, []string{ev.ID}, hints, d.store.Events.Save(ev)

	case models.TypeScene:
		sc, err := d.store.Scenes.GetByID(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		if sc == nil {
			return nil, nil, nil, narraerr.NotFound("scene", entityID)
		}
		sc.Title = fields.strOr("title", sc.Title)
		sc.Summary = fields.strOr("summary", sc.Summary)
		sc.EventID = fields.strOr("event_id", sc.EventID)
		sc.PrimaryLocationID = fields.strOr("location_id", sc.PrimaryLocationID)
		hints, err := d.gate(models.TypeScene, sc.ID, "", sc.Title+" "+sc.Summary)
		if err != nil {
			return nil, nil, nil, err
		}
		return sc, []string{sc.ID}, hints, d.store.Scenes.Save(sc)

	case models.TypeNote:
		n, err := d.store.Notes.GetByID(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		if n == nil {
			return nil, nil, nil, narraerr.NotFound("note", entityID)
		}
		n.Title = fields.strOr("title", n.Title)
		n.Body = fields.strOr("body", n.Body)
		if v := fields.strs("tags"); v != nil {
			n.Tags = v
		}
		return n, []string{n.ID}, nil, d.store.Notes.Save(n)

	default:
		return nil, nil, nil, narraerr.Validation("entity type %q does not support update", id.Table)
	}
}

func (d *Dispatcher) handleDelete(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := ids.Parse(entityID)
	if err != nil {
		return nil, nil, nil, narraerr.Validation("invalid entity id %q", entityID)
	}
	if err := d.store.DeleteEntity(id, c.params.boolOr("force", false)); err != nil {
		return nil, nil, nil, err
	}
	d.searcher.Invalidate()
	return map[string]any{"deleted": entityID}, nil, nil, nil
}

func (d *Dispatcher) handleCreateNote(ctx context.Context, c *call) (any, []string, []string, error) {
	title, err := c.params.requireStr("title")
	if err != nil {
		return nil, nil, nil, err
	}
	n := &models.Note{
		ID:    newID(models.TypeNote),
		Title: title,
		Body:  c.params.strOr("body", ""),
		Tags:  c.params.strs("tags"),
	}
	if err := d.store.Notes.Save(n); err != nil {
		return nil, nil, nil, err
	}
	accessed := []string{n.ID}
	for _, entityID := range c.params.strs("entity_ids") {
		if err := d.store.Notes.Link(n.ID, entityID); err != nil {
			return nil, nil, nil, err
		}
		accessed = append(accessed, entityID)
	}
	return n, accessed, nil, nil
}

func (d *Dispatcher) handleAttachNote(ctx context.Context, c *call) (any, []string, []string, error) {
	noteID, err := c.params.requireStr("note_id")
	if err != nil {
		return nil, nil, nil, err
	}
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Notes.Link(noteID, entityID); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"note": noteID, "entity": entityID}, []string{entityID}, nil, nil
}

func (d *Dispatcher) handleDetachNote(ctx context.Context, c *call) (any, []string, []string, error) {
	noteID, err := c.params.requireStr("note_id")
	if err != nil {
		return nil, nil, nil, err
	}
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Notes.Unlink(noteID, entityID); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"note": noteID, "entity": entityID}, nil, nil, nil
}

func parseScope(p params) *models.FactScope {
	scope := &models.FactScope{}
	if t := p.sub("temporal"); t != nil {
		scope.Temporal = &models.TemporalScope{
			ValidFromEventID:  t.strOr("valid_from_event", ""),
			ValidUntilEventID: t.strOr("valid_until_event", ""),
			Description:       t.strOr("description", ""),
		}
	}
	if pov := p.sub("pov"); pov != nil {
		scope.Pov = &models.PovScope{
			Kind:        models.PovKind(pov.strOr("kind", string(models.PovAll))),
			CharacterID: pov.strOr("character_id", ""),
			Group:       pov.strOr("group", ""),
			ExceptIDs:   pov.strs("except_ids"),
		}
	}
	if scope.Temporal == nil && scope.Pov == nil {
		return nil
	}
	return scope
}

func (d *Dispatcher) handleCreateFact(ctx context.Context, c *call) (any, []string, []string, error) {
	title, err := c.params.requireStr("title")
	if err != nil {
		return nil, nil, nil, err
	}
	level := models.EnforcementLevel(c.params.strOr("enforcement_level", string(models.EnforcementInformational)))
	switch level {
	case models.EnforcementInformational, models.EnforcementWarning, models.EnforcementStrict:
	default:
		return nil, nil, nil, narraerr.Validation("unknown enforcement level %q", level)
	}

	f := &models.UniverseFact{
		ID:               newID(models.TypeFact),
		Title:            title,
		Description:      c.params.strOr("description", ""),
		Categories:       c.params.strs("categories"),
		EnforcementLevel: level,
		Scope:            parseScope(c.params),
	}
	if err := d.store.Facts.Save(f); err != nil {
		return nil, nil, nil, err
	}
	return f, []string{f.ID}, nil, nil
}

func (d *Dispatcher) handleUpdateFact(ctx context.Context, c *call) (any, []string, []string, error) {
	factID, err := c.params.requireStr("fact_id")
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := d.store.Facts.GetByID(factID)
	if err != nil {
		return nil, nil, nil, err
	}
	if f == nil {
		return nil, nil, nil, narraerr.NotFound("fact", factID)
	}
	f.Title = c.params.strOr("title", f.Title)
	f.Description = c.params.strOr("description", f.Description)
	if v := c.params.strs("categories"); v != nil {
		f.Categories = v
	}
	if level, ok := c.params.str("enforcement_level"); ok {
		f.EnforcementLevel = models.EnforcementLevel(level)
	}
	if scope := parseScope(c.params); scope != nil {
		f.Scope = scope
	}
	if err := d.store.Facts.Save(f); err != nil {
		return nil, nil, nil, err
	}
	return f, []string{f.ID}, nil, nil
}

func (d *Dispatcher) handleDeleteFact(ctx context.Context, c *call) (any, []string, []string, error) {
	factID, err := c.params.requireStr("fact_id")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Facts.Delete(factID); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"deleted": factID}, nil, nil, nil
}

func (d *Dispatcher) handleLinkFact(ctx context.Context, c *call) (any, []string, []string, error) {
	factID, err := c.params.requireStr("fact_id")
	if err != nil {
		return nil, nil, nil, err
	}
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	link := &models.FactLink{FactID: factID, EntityID: entityID, LinkType: "manual"}
	if err := d.store.Facts.Link(link); err != nil {
		return nil, nil, nil, err
	}
	return link, []string{entityID}, nil, nil
}

func (d *Dispatcher) handleUnlinkFact(ctx context.Context, c *call) (any, []string, []string, error) {
	factID, err := c.params.requireStr("fact_id")
	if err != nil {
		return nil, nil, nil, err
	}
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.store.Facts.Unlink(factID, entityID); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"fact": factID, "entity": entityID}, nil, nil, nil
}

func (d *Dispatcher) handleCreateRelationship(ctx context.Context, c *call) (any, []string, []string, error) {
	fromRef, err := c.params.requireStr("from")
	if err != nil {
		return nil, nil, nil, err
	}
	toRef, err := c.params.requireStr("to")
	if err != nil {
		return nil, nil, nil, err
	}
	relType, err := c.params.requireStr("rel_type")
	if err != nil {
		return nil, nil, nil, err
	}
	from, err := d.store.ResolveCharacter(fromRef)
	if err != nil {
		return nil, nil, nil, err
	}
	to, err := d.store.ResolveCharacter(toRef)
	if err != nil {
		return nil, nil, nil, err
	}

	r := &models.Relationship{
		ID:      newID(models.TypeRelationship),
		FromID:  from.ID,
		ToID:    to.ID,
		RelType: relType,
		Subtype: c.params.strOr("subtype", ""),
		Label:   c.params.strOr("label", ""),
	}
	if err := d.store.Perceptions.SaveRelationship(r); err != nil {
		return nil, nil, nil, err
	}
	return r, []string{from.ID, to.ID}, nil, nil
}

func (d *Dispatcher) handleRecordPerception(ctx context.Context, c *call) (any, []string, []string, error) {
	observerRef, err := c.params.requireStr("observer_id")
	if err != nil {
		return nil, nil, nil, err
	}
	targetRef, err := c.params.requireStr("target_id")
	if err != nil {
		return nil, nil, nil, err
	}
	observer, err := d.store.ResolveCharacter(observerRef)
	if err != nil {
		return nil, nil, nil, err
	}
	target, err := d.store.ResolveCharacter(targetRef)
	if err != nil {
		return nil, nil, nil, err
	}

	p := &models.Perception{
		ID:           newID(models.TypePerception),
		ObserverID:   observer.ID,
		TargetID:     target.ID,
		RelTypes:     c.params.strs("rel_types"),
		Subtype:      c.params.strOr("subtype", ""),
		Perception:   c.params.strOr("perception", ""),
		Feelings:     c.params.strOr("feelings", ""),
		TensionLevel: c.params.intPtr("tension_level"),
		HistoryNotes: c.params.strOr("history", ""),
	}
	if err := d.store.Perceptions.SavePerception(p); err != nil {
		return nil, nil, nil, err
	}
	return p, []string{observer.ID, target.ID}, nil, nil
}

func (d *Dispatcher) handleBackfill(ctx context.Context, c *call) (any, []string, []string, error) {
	stats, err := d.backfill.Run(ctx, backfill.Options{
		Types:             parseEntityTypes(c.params.strs("types")),
		BatchSize:         c.params.intOr("batch_size", d.cfg.BackfillBatchSize),
		SnapshotThreshold: c.params.floatOr("snapshot_threshold", d.cfg.SnapshotThreshold),
		ForceBaseline:     c.params.boolOr("force_baseline", false),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	d.searcher.Invalidate()
	return stats, nil, nil, nil
}

func (d *Dispatcher) handleBaselineSnapshots(ctx context.Context, c *call) (any, []string, []string, error) {
	stats, err := d.backfill.Run(ctx, backfill.Options{
		Types:             parseEntityTypes(c.params.strs("types")),
		BatchSize:         c.params.intOr("batch_size", d.cfg.BackfillBatchSize),
		SnapshotThreshold: d.cfg.SnapshotThreshold,
		ForceBaseline:     true,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	d.searcher.Invalidate()
	return stats, nil, nil, nil
}

func (d *Dispatcher) handleProtect(protected bool) handler {
	return func(ctx context.Context, c *call) (any, []string, []string, error) {
		entityID, err := c.params.requireStr("entity_id")
		if err != nil {
			return nil, nil, nil, err
		}
		id, err := ids.Parse(entityID)
		if err != nil {
			return nil, nil, nil, narraerr.Validation("invalid entity id %q", entityID)
		}
		if err := d.store.SetProtected(id, protected); err != nil {
			return nil, nil, nil, err
		}
		return map[string]any{"entity": entityID, "protected": protected}, []string{entityID}, nil, nil
	}
}

func (d *Dispatcher) handleImportYaml(ctx context.Context, c *call) (any, []string, []string, error) {
	doc, err := c.params.requireStr("yaml")
	if err != nil {
		return nil, nil, nil, err
	}
	mode := export.ConflictMode(c.params.strOr("on_conflict", string(export.ConflictError)))
	stats, err := d.exporter.Import(strings.NewReader(doc), mode)
	if err != nil {
		return nil, nil, nil, err
	}
	d.searcher.Invalidate()
	return stats, nil, nil, nil
}

func (d *Dispatcher) handleExportWorld(ctx context.Context, c *call) (any, []string, []string, error) {
	var sb strings.Builder
	if err := d.exporter.Export(&sb); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"yaml": sb.String()}, nil, nil, nil
}

func (d *Dispatcher) handleSavePhases(ctx context.Context, c *call) (any, []string, []string, error) {
	details, err := d.temporal.Detect(temporalOptions(c))
	return details, nil, nil, err
}

func (d *Dispatcher) handleClearPhases(ctx context.Context, c *call) (any, []string, []string, error) {
	if err := d.temporal.Forget(); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"cleared": true}, nil, nil, nil
}

func (d *Dispatcher) handleGetSessionContext(ctx context.Context, c *call) (any, []string, []string, error) {
	counts, _, _, err := d.handleOverview(ctx, c)
	if err != nil {
		return nil, nil, nil, err
	}
	total := 0
	for _, tc := range counts.([]typeCount) {
		total += tc.Count
	}
	orientation, err := d.session.Orient(total)
	return orientation, nil, nil, err
}

func (d *Dispatcher) handlePin(pin bool) handler {
	return func(ctx context.Context, c *call) (any, []string, []string, error) {
		entityID, err := c.params.requireStr("entity_id")
		if err != nil {
			return nil, nil, nil, err
		}
		if pin {
			err = d.session.Pin(entityID)
		} else {
			err = d.session.Unpin(entityID)
		}
		if err != nil {
			return nil, nil, nil, err
		}
		return map[string]any{"entity": entityID, "pinned": pin}, nil, nil, nil
	}
}

func (d *Dispatcher) handleAddDecision(ctx context.Context, c *call) (any, []string, []string, error) {
	description, err := c.params.requireStr("description")
	if err != nil {
		return nil, nil, nil, err
	}
	decision, err := d.session.AddDecision(description, c.params.strs("entity_ids"))
	if err != nil {
		return nil, nil, nil, err
	}
	return decision, nil, nil, nil
}

func (d *Dispatcher) handleResolveDecision(ctx context.Context, c *call) (any, []string, []string, error) {
	decisionID, err := c.params.requireStr("decision_id")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := d.session.ResolveDecision(decisionID); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"resolved": decisionID}, nil, nil, nil
}

func (d *Dispatcher) handleMarkSessionEnd(ctx context.Context, c *call) (any, []string, []string, error) {
	if err := d.session.Touch(); err != nil {
		return nil, nil, nil, err
	}
	return map[string]any{"recorded": true}, nil, nil, nil
}

// graphEdge is one edge in a generated relationship graph
type graphEdge struct {
	From    string `json:"from"`
	To      string `json:"to"`
	RelType string `json:"rel_type"`
	Label   string `json:"label,omitempty"`
}

func (d *Dispatcher) handleGenerateGraph(ctx context.Context, c *call) (any, []string, []string, error) {
	relationships, err := d.store.Perceptions.ListRelationships()
	if err != nil {
		return nil, nil, nil, err
	}
	edges := make([]graphEdge, 0, len(relationships))
	for _, r := range relationships {
		edges = append(edges, graphEdge{
			From:    d.store.EntityNameOrID(r.FromID),
			To:      d.store.EntityNameOrID(r.ToID),
			RelType: r.RelType,
			Label:   r.Label,
		})
	}
	if c.params.boolOr("include_perceptions", false) {
		perceptions, err := d.store.Perceptions.ListPerceptions()
		if err != nil {
			return nil, nil, nil, err
		}
		for _, p := range perceptions {
			edges = append(edges, graphEdge{
				From:    d.store.EntityNameOrID(p.ObserverID),
				To:      d.store.EntityNameOrID(p.TargetID),
				RelType: "perceives",
			})
		}
	}
	return edges, nil, nil, nil
}

// ABOUTME: Read-side operation handlers: lookup, search, and analytics
// ABOUTME: Each handler maps the parameter bag onto one service call
package dispatch

import (
	"context"
	"sort"
	"strings"

	"github.com/florinutz/narra/internal/consistency"
	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/search"
	"github.com/florinutz/narra/internal/temporal"
)

// entityView is the uniform lookup payload
type entityView struct {
	ID         string  `json:"id"`
	EntityType string  `json:"entity_type"`
	Name       string  `json:"name"`
	Content    string  `json:"content"`
	Score      float64 `json:"score,omitempty"`
}

func (d *Dispatcher) handleLookup(ctx context.Context, c *call) (any, []string, []string, error) {
	raw, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := ids.Parse(raw)
	if err != nil {
		return nil, nil, nil, narraerr.Validation("invalid entity id %q", raw)
	}

	content, err := d.render.Render(models.EntityType(id.Table), raw)
	if err != nil {
		return nil, nil, nil, err
	}
	name, err := d.store.EntityName(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.detail == DetailSummary {
		content = firstSentence(content)
	}
	return entityView{
		ID:         raw,
		EntityType: id.Table,
		Name:       name,
		Content:    content,
	}, []string{raw}, nil, nil
}

func (d *Dispatcher) handleSearch(ctx context.Context, c *call) (any, []string, []string, error) {
	query, err := c.params.requireStr("query")
	if err != nil {
		return nil, nil, nil, err
	}
	opts := search.Options{
		Mode:   search.Mode(c.params.strOr("mode", string(search.ModeHybrid))),
		Types:  parseEntityTypes(c.params.strs("types")),
		Limit:  c.params.intOr("limit", d.cfg.SearchDefaultK),
		Offset: c.params.intOr("offset", 0),
		Rerank: c.params.boolOr("rerank", false),
	}
	results, err := d.searcher.Search(ctx, query, opts)
	if err != nil {
		return nil, nil, nil, err
	}

	accessed := make([]string, 0, len(results))
	for _, r := range results {
		accessed = append(accessed, r.EntityID)
	}
	var hints []string
	if opts.Mode == search.ModeHybrid && !d.backend.Capabilities().CanEncode {
		hints = append(hints, "semantic search unavailable; results are keyword-only")
	}
	return results, accessed, hints, nil
}

// typeCount pairs an entity type with how many exist
type typeCount struct {
	EntityType string `json:"entity_type"`
	Count      int    `json:"count"`
}

func (d *Dispatcher) handleOverview(ctx context.Context, c *call) (any, []string, []string, error) {
	var out []typeCount
	for _, t := range models.EmbeddableTypes() {
		total, _, _, err := d.store.Embeddings.CountByState(t)
		if err != nil {
			return nil, nil, nil, err
		}
		out = append(out, typeCount{EntityType: string(t), Count: total})
	}
	facts, err := d.store.Facts.List()
	if err != nil {
		return nil, nil, nil, err
	}
	out = append(out, typeCount{EntityType: string(models.TypeFact), Count: len(facts)})
	return out, nil, nil, nil
}

func (d *Dispatcher) handleListNotes(ctx context.Context, c *call) (any, []string, []string, error) {
	if entityID, ok := c.params.str("entity_id"); ok {
		notes, err := d.store.Notes.ListByEntity(entityID)
		return notes, nil, nil, err
	}
	notes, err := d.store.Notes.List()
	return notes, nil, nil, err
}

func (d *Dispatcher) handleGetFact(ctx context.Context, c *call) (any, []string, []string, error) {
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
	return f, []string{factID}, nil, nil
}

func (d *Dispatcher) handleListFacts(ctx context.Context, c *call) (any, []string, []string, error) {
	if level, ok := c.params.str("enforcement_level"); ok {
		facts, err := d.store.Facts.ListByEnforcement(models.EnforcementLevel(level))
		return facts, nil, nil, err
	}
	facts, err := d.store.Facts.List()
	return facts, nil, nil, err
}

func (d *Dispatcher) handleArcHistory(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	h, err := d.arcs.History(entityID, c.params.strOr("window", ""))
	if err != nil {
		return nil, nil, nil, err
	}
	return h, []string{entityID}, nil, nil
}

func (d *Dispatcher) handleArcComparison(ctx context.Context, c *call) (any, []string, []string, error) {
	a, err := c.params.requireStr("entity_a")
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := c.params.requireStr("entity_b")
	if err != nil {
		return nil, nil, nil, err
	}
	cmp, err := d.arcs.Compare(a, b, c.params.strOr("window", ""))
	if err != nil {
		return nil, nil, nil, err
	}
	return cmp, []string{a, b}, nil, nil
}

func (d *Dispatcher) handleArcDrift(ctx context.Context, c *call) (any, []string, []string, error) {
	entries, err := d.arcs.Drift(c.params.intOr("limit", 10))
	return entries, nil, nil, err
}

func (d *Dispatcher) handleArcMoment(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	eventID := c.params.strOr("event_id", "")
	snap, err := d.arcs.Moment(entityID, eventID)
	if err != nil {
		return nil, nil, nil, err
	}
	accessed := []string{entityID}
	if eventID != "" {
		accessed = append(accessed, eventID)
	}
	return snap, accessed, nil, nil
}

func (d *Dispatcher) handlePerceptionGap(ctx context.Context, c *call) (any, []string, []string, error) {
	observer, target, err := observerTarget(c)
	if err != nil {
		return nil, nil, nil, err
	}
	gap, err := d.percept.Gap(observer, target)
	if err != nil {
		return nil, nil, nil, err
	}
	return gap, []string{observer, target}, nil, nil
}

func (d *Dispatcher) handlePerceptionMatrix(ctx context.Context, c *call) (any, []string, []string, error) {
	target, err := c.params.requireStr("target_id")
	if err != nil {
		return nil, nil, nil, err
	}
	rows, err := d.percept.Matrix(target)
	if err != nil {
		return nil, nil, nil, err
	}
	return rows, []string{target}, nil, nil
}

func (d *Dispatcher) handlePerceptionShift(ctx context.Context, c *call) (any, []string, []string, error) {
	observer, target, err := observerTarget(c)
	if err != nil {
		return nil, nil, nil, err
	}
	shift, err := d.percept.Shift(observer, target)
	if err != nil {
		return nil, nil, nil, err
	}
	return shift, []string{observer, target}, nil, nil
}

func (d *Dispatcher) handleGrowthVector(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := d.vec.GrowthVector(entityID)
	if err != nil {
		return nil, nil, nil, err
	}
	return g, []string{entityID}, nil, nil
}

func (d *Dispatcher) handleMisperceptionVector(ctx context.Context, c *call) (any, []string, []string, error) {
	observer, target, err := observerTarget(c)
	if err != nil {
		return nil, nil, nil, err
	}
	direction, err := d.vec.MisperceptionVector(observer, target)
	if err != nil {
		return nil, nil, nil, err
	}
	aligned, err := d.vec.FindAligned(direction, c.params.intOr("limit", 5))
	if err != nil {
		return nil, nil, nil, err
	}
	result := map[string]any{
		"observer": observer,
		"target":   target,
		"aligned":  aligned,
	}
	return result, []string{observer, target}, nil, nil
}

func (d *Dispatcher) handleConvergence(ctx context.Context, c *call) (any, []string, []string, error) {
	a, err := c.params.requireStr("entity_a")
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := c.params.requireStr("entity_b")
	if err != nil {
		return nil, nil, nil, err
	}
	conv, err := d.vec.Converging(a, b, c.params.intOr("window", 0))
	if err != nil {
		return nil, nil, nil, err
	}
	return conv, []string{a, b}, nil, nil
}

func (d *Dispatcher) handleSemanticMidpoint(ctx context.Context, c *call) (any, []string, []string, error) {
	a, err := c.params.requireStr("entity_a")
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := c.params.requireStr("entity_b")
	if err != nil {
		return nil, nil, nil, err
	}
	neighbors, err := d.vec.Midpoint(a, b, c.params.intOr("limit", 5))
	if err != nil {
		return nil, nil, nil, err
	}
	return neighbors, []string{a, b}, nil, nil
}

func (d *Dispatcher) handleSimilarEntities(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	neighbors, err := d.vec.Nearest(entityID, c.params.intOr("limit", 5))
	if err != nil {
		return nil, nil, nil, err
	}
	return neighbors, []string{entityID}, nil, nil
}

func temporalOptions(c *call) temporal.Options {
	opts := temporal.Options{K: c.params.intPtr("k")}
	if w := c.params.sub("weights"); w != nil {
		opts.Weights = temporal.Weights{
			Content:      w.floatOr("content", temporal.DefaultWeightContent),
			Neighborhood: w.floatOr("neighborhood", temporal.DefaultWeightNeighborhood),
			Temporal:     w.floatOr("temporal", temporal.DefaultWeightTemporal),
		}
	}
	return opts
}

func (d *Dispatcher) handleDetectPhases(ctx context.Context, c *call) (any, []string, []string, error) {
	details, err := d.temporal.Detect(temporalOptions(c))
	return details, nil, nil, err
}

func (d *Dispatcher) handleLoadPhases(ctx context.Context, c *call) (any, []string, []string, error) {
	details, err := d.temporal.LoadOrDetect(temporalOptions(c))
	return details, nil, nil, err
}

func (d *Dispatcher) handleQueryAround(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	around, err := d.temporal.QueryAround(entityID, c.params.intOr("limit", 10), temporalOptions(c))
	if err != nil {
		return nil, nil, nil, err
	}
	accessed := []string{entityID}
	for _, n := range around.Neighbors {
		accessed = append(accessed, n.EntityID)
	}
	return around, accessed, nil, nil
}

func (d *Dispatcher) handleDetectTransitions(ctx context.Context, c *call) (any, []string, []string, error) {
	transitions, err := d.temporal.DetectTransitions(temporalOptions(c))
	return transitions, nil, nil, err
}

func (d *Dispatcher) handleInferRoles(ctx context.Context, c *call) (any, []string, []string, error) {
	if ref, ok := c.params.str("character_id"); ok {
		ch, err := d.store.ResolveCharacter(ref)
		if err != nil {
			return nil, nil, nil, err
		}
		inf, err := d.roles.Infer(ch.ID)
		if err != nil {
			return nil, nil, nil, err
		}
		return inf, []string{ch.ID}, nil, nil
	}
	all, err := d.roles.InferAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if limit := c.params.intOr("limit", 0); limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil, nil, err
}

func (d *Dispatcher) handleCentralityMetrics(ctx context.Context, c *call) (any, []string, []string, error) {
	all, err := d.roles.InferAll()
	if err != nil {
		return nil, nil, nil, err
	}
	type metric struct {
		CharacterID string  `json:"character"`
		Name        string  `json:"name"`
		Degree      float64 `json:"degree_centrality"`
		Betweenness float64 `json:"betweenness_centrality"`
	}
	out := make([]metric, len(all))
	for i, inf := range all {
		out[i] = metric{
			CharacterID: inf.CharacterID,
			Name:        inf.Name,
			Degree:      inf.Degree,
			Betweenness: inf.Betweenness,
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Degree != out[j].Degree {
			return out[i].Degree > out[j].Degree
		}
		return out[i].CharacterID < out[j].CharacterID
	})
	if limit := c.params.intOr("limit", 0); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil, nil, nil
}

func (d *Dispatcher) handleNarrativeTensions(ctx context.Context, c *call) (any, []string, []string, error) {
	a, err := c.params.requireStr("character_a")
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := c.params.requireStr("character_b")
	if err != nil {
		return nil, nil, nil, err
	}
	analysis, err := d.tension.Analyze(a, b)
	if err != nil {
		return nil, nil, nil, err
	}
	return analysis, []string{a, b}, nil, nil
}

func (d *Dispatcher) handleTensionMatrix(ctx context.Context, c *call) (any, []string, []string, error) {
	hotspots, err := d.tension.Hotspots(c.params.intOr("limit", 10))
	if err != nil {
		return nil, nil, nil, err
	}
	var accessed []string
	for _, h := range hotspots {
		accessed = append(accessed, h.CharacterA, h.CharacterB)
	}
	return hotspots, accessed, nil, nil
}

func (d *Dispatcher) handleValidateEntity(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	violations, err := d.checker.CheckEntity(ctx, entityID)
	if err != nil {
		return nil, nil, nil, err
	}
	return violations, []string{entityID}, nil, nil
}

func (d *Dispatcher) handleCheckConsistency(ctx context.Context, c *call) (any, []string, []string, error) {
	report, err := d.checker.CheckAll(ctx)
	return report, nil, nil, err
}

func (d *Dispatcher) handleWhatIf(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	proposed, err := c.params.requireStr("description")
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := ids.Parse(entityID)
	if err != nil {
		return nil, nil, nil, narraerr.Validation("invalid entity id %q", entityID)
	}
	characterID := ""
	if id.Table == string(models.TypeCharacter) {
		characterID = entityID
	}
	violations, err := d.checker.CheckDraft(models.EntityType(id.Table), entityID, characterID, proposed)
	if err != nil {
		return nil, nil, nil, err
	}
	result := map[string]any{
		"entity_id":  entityID,
		"violations": violations,
		"blocked":    consistency.HasCritical(violations),
	}
	return result, []string{entityID}, nil, nil
}

// healthEntry reports embedding coverage per entity type
type healthEntry struct {
	EntityType string `json:"entity_type"`
	Total      int    `json:"total"`
	Embedded   int    `json:"embedded"`
	Stale      int    `json:"stale"`
}

func (d *Dispatcher) handleEmbeddingHealth(ctx context.Context, c *call) (any, []string, []string, error) {
	var out []healthEntry
	for _, t := range models.EmbeddableTypes() {
		total, embedded, stale, err := d.store.Embeddings.CountByState(t)
		if err != nil {
			return nil, nil, nil, err
		}
		out = append(out, healthEntry{
			EntityType: string(t),
			Total:      total,
			Embedded:   embedded,
			Stale:      stale,
		})
	}
	var hints []string
	if !d.backend.Capabilities().CanEncode {
		hints = append(hints, "embedding backend unavailable; stale entities cannot be refreshed")
	}
	return out, nil, hints, nil
}

func (d *Dispatcher) handleSituationReport(ctx context.Context, c *call) (any, []string, []string, error) {
	total := 0
	counts, _, _, err := d.handleOverview(ctx, c)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, tc := range counts.([]typeCount) {
		total += tc.Count
	}
	orientation, err := d.session.Orient(total)
	if err != nil {
		return nil, nil, nil, err
	}
	report := map[string]any{
		"orientation": orientation,
		"counts":      counts,
	}
	return report, nil, nil, nil
}

func (d *Dispatcher) handleCharacterDossier(ctx context.Context, c *call) (any, []string, []string, error) {
	ref, err := c.params.requireStr("character_id")
	if err != nil {
		return nil, nil, nil, err
	}
	ch, err := d.store.ResolveCharacter(ref)
	if err != nil {
		return nil, nil, nil, err
	}

	content, err := d.render.Render(models.TypeCharacter, ch.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	inference, err := d.roles.Infer(ch.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	edges, err := d.store.Knowledge.LatestEdges(ch.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	perceivedBy, err := d.store.Perceptions.ListPerceptionsOf(ch.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	relationships, err := d.store.Perceptions.ListRelationshipsFrom(ch.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	dossier := map[string]any{
		"character":     ch,
		"composite":     content,
		"roles":         inference,
		"knowledge":     edges,
		"perceived_by":  perceivedBy,
		"relationships": relationships,
	}
	return dossier, []string{ch.ID}, nil, nil
}

// knowledgeGap is a proposition others hold that a character lacks
type knowledgeGap struct {
	KnowledgeID string   `json:"knowledge"`
	Fact        string   `json:"fact"`
	HeldBy      []string `json:"held_by"`
}

func (d *Dispatcher) handleKnowledgeGaps(ctx context.Context, c *call) (any, []string, []string, error) {
	ref, err := c.params.requireStr("character_id")
	if err != nil {
		return nil, nil, nil, err
	}
	ch, err := d.store.ResolveCharacter(ref)
	if err != nil {
		return nil, nil, nil, err
	}

	all, err := d.store.Knowledge.AllLatestEdges()
	if err != nil {
		return nil, nil, nil, err
	}
	mine := map[string]bool{}
	holders := map[string][]string{}
	for _, e := range all {
		if e.Certainty == models.CertaintyUnknown {
			continue
		}
		if e.CharacterID == ch.ID {
			mine[e.KnowledgeID] = true
		} else {
			holders[e.KnowledgeID] = append(holders[e.KnowledgeID], d.store.EntityNameOrID(e.CharacterID))
		}
	}

	var gaps []knowledgeGap
	for knowledgeID, heldBy := range holders {
		if mine[knowledgeID] {
			continue
		}
		k, err := d.store.Knowledge.GetByID(knowledgeID)
		if err != nil || k == nil {
			continue
		}
		sort.Strings(heldBy)
		gaps = append(gaps, knowledgeGap{KnowledgeID: knowledgeID, Fact: k.Fact, HeldBy: heldBy})
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].KnowledgeID < gaps[j].KnowledgeID })
	return gaps, []string{ch.ID}, nil, nil
}

// ironyEntry is one dramatic irony: someone is wrong about something
// another character knows
type ironyEntry struct {
	KnowledgeID string   `json:"knowledge"`
	Fact        string   `json:"fact"`
	Deceived    []string `json:"deceived"`
	Knowers     []string `json:"knowers"`
}

func (d *Dispatcher) handleDramaticIrony(ctx context.Context, c *call) (any, []string, []string, error) {
	all, err := d.store.Knowledge.AllLatestEdges()
	if err != nil {
		return nil, nil, nil, err
	}

	wrong := map[string][]string{}
	right := map[string][]string{}
	for _, e := range all {
		switch e.Certainty {
		case models.CertaintyBelievesWrongly:
			wrong[e.KnowledgeID] = append(wrong[e.KnowledgeID], d.store.EntityNameOrID(e.CharacterID))
		case models.CertaintyKnows:
			right[e.KnowledgeID] = append(right[e.KnowledgeID], d.store.EntityNameOrID(e.CharacterID))
		}
	}

	var out []ironyEntry
	for knowledgeID, deceived := range wrong {
		knowers, ok := right[knowledgeID]
		if !ok {
			continue
		}
		k, err := d.store.Knowledge.GetByID(knowledgeID)
		if err != nil || k == nil {
			continue
		}
		sort.Strings(deceived)
		sort.Strings(knowers)
		out = append(out, ironyEntry{
			KnowledgeID: knowledgeID,
			Fact:        k.Fact,
			Deceived:    deceived,
			Knowers:     knowers,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KnowledgeID < out[j].KnowledgeID })
	return out, nil, nil, nil
}

func (d *Dispatcher) handleKnowledgeConflicts(ctx context.Context, c *call) (any, []string, []string, error) {
	a, err := c.params.requireStr("character_a")
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := c.params.requireStr("character_b")
	if err != nil {
		return nil, nil, nil, err
	}
	edgesA, err := d.store.Knowledge.LatestEdges(a)
	if err != nil {
		return nil, nil, nil, err
	}
	edgesB, err := d.store.Knowledge.LatestEdges(b)
	if err != nil {
		return nil, nil, nil, err
	}

	byKnowledge := map[string]models.Certainty{}
	for _, e := range edgesB {
		byKnowledge[e.KnowledgeID] = e.Certainty
	}
	type conflict struct {
		KnowledgeID string `json:"knowledge"`
		Fact        string `json:"fact"`
		CertaintyA  string `json:"certainty_a"`
		CertaintyB  string `json:"certainty_b"`
	}
	var out []conflict
	for _, e := range edgesA {
		other, shared := byKnowledge[e.KnowledgeID]
		if !shared || other == e.Certainty {
			continue
		}
		k, err := d.store.Knowledge.GetByID(e.KnowledgeID)
		if err != nil || k == nil {
			continue
		}
		out = append(out, conflict{
			KnowledgeID: e.KnowledgeID,
			Fact:        k.Fact,
			CertaintyA:  string(e.Certainty),
			CertaintyB:  string(other),
		})
	}
	return out, []string{a, b}, nil, nil
}

// impact summarizes what would be affected by changing an entity
type impact struct {
	EntityID      string   `json:"entity_id"`
	Scenes        []string `json:"scenes,omitempty"`
	Perceptions   []string `json:"perceptions,omitempty"`
	Relationships []string `json:"relationships,omitempty"`
	Facts         []string `json:"facts,omitempty"`
	Notes         []string `json:"notes,omitempty"`
	Phases        []string `json:"phases,omitempty"`
	Snapshots     int      `json:"snapshots"`
}

func (d *Dispatcher) handleAnalyzeImpact(ctx context.Context, c *call) (any, []string, []string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := ids.Parse(entityID)
	if err != nil {
		return nil, nil, nil, narraerr.Validation("invalid entity id %q", entityID)
	}

	result := impact{EntityID: entityID}

	if id.Table == string(models.TypeCharacter) {
		sceneIDs, err := d.store.Scenes.ScenesOf(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		result.Scenes = sceneIDs

		by, err := d.store.Perceptions.ListPerceptionsBy(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		of, err := d.store.Perceptions.ListPerceptionsOf(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, p := range append(by, of...) {
			result.Perceptions = append(result.Perceptions, p.ID)
		}
		rels, err := d.store.Perceptions.ListRelationshipsFrom(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, r := range rels {
			result.Relationships = append(result.Relationships, r.ID)
		}
	}
	if id.Table == string(models.TypeEvent) {
		scenes, err := d.store.Scenes.ListByEvent(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, sc := range scenes {
			result.Scenes = append(result.Scenes, sc.ID)
		}
	}
	if id.Table == string(models.TypeLocation) {
		scenes, err := d.store.Scenes.ListByLocation(entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, sc := range scenes {
			result.Scenes = append(result.Scenes, sc.ID)
		}
	}

	facts, err := d.store.Facts.ListByEntity(entityID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, f := range facts {
		result.Facts = append(result.Facts, f.ID)
	}
	notes, err := d.store.Notes.ListByEntity(entityID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, n := range notes {
		result.Notes = append(result.Notes, n.ID)
	}
	memberships, err := d.store.Phases.MembershipsOf(entityID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, m := range memberships {
		result.Phases = append(result.Phases, m.PhaseID)
	}
	snaps, err := d.store.Snapshots.History(entityID)
	if err != nil {
		return nil, nil, nil, err
	}
	result.Snapshots = len(snaps)

	return result, []string{entityID}, nil, nil
}

func observerTarget(c *call) (string, string, error) {
	observer, err := c.params.requireStr("observer_id")
	if err != nil {
		return "", "", err
	}
	target, err := c.params.requireStr("target_id")
	if err != nil {
		return "", "", err
	}
	return observer, target, nil
}

func parseEntityTypes(raw []string) []models.EntityType {
	var out []models.EntityType
	for _, t := range raw {
		et := models.EntityType(strings.ToLower(t))
		if et.Valid() {
			out = append(out, et)
		}
	}
	return out
}

// firstSentence trims a composite down to its opening sentence
func firstSentence(text string) string {
	if i := strings.Index(text, ". "); i >= 0 {
		return text[:i+1]
	}
	return text
}

// ABOUTME: The closed operation set: every name a front-end may dispatch
// ABOUTME: Lookups default to small budgets, composite reports to large ones
package dispatch

import "sort"

// mutationOps and sessionOps partition the operation set for front-ends
// that expose reads and writes as separate tools. Everything else reads.
var mutationOps = map[string]bool{
	"create_character": true, "create_location": true, "create_event": true,
	"create_scene": true, "record_knowledge": true, "record_perception": true,
	"create_relationship": true, "update": true, "delete": true,
	"protect_entity": true, "unprotect_entity": true,
	"create_note": true, "attach_note": true, "detach_note": true,
	"create_fact": true, "update_fact": true, "delete_fact": true,
	"link_fact": true, "unlink_fact": true,
	"batch_create_characters": true, "batch_create_locations": true,
	"batch_create_events": true, "batch_create_relationships": true,
	"batch_record_knowledge": true,
	"backfill_embeddings":    true, "baseline_arc_snapshots": true,
	"import_yaml": true, "save_phases": true, "clear_phases": true,
	"annotate_entities": true,
}

var sessionOps = map[string]bool{
	"get_session_context": true, "pin_entity": true, "unpin_entity": true,
	"add_decision": true, "resolve_decision": true, "mark_session_end": true,
}

// IsMutation reports whether an operation writes world state
func IsMutation(name string) bool { return mutationOps[name] }

// IsSession reports whether an operation touches session state
func IsSession(name string) bool { return sessionOps[name] }

// QueryOperations lists read operations, sorted
func (d *Dispatcher) QueryOperations() []string {
	var out []string
	for name := range d.ops {
		if !mutationOps[name] && !sessionOps[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// MutationOperations lists write operations, sorted
func (d *Dispatcher) MutationOperations() []string {
	var out []string
	for name := range d.ops {
		if mutationOps[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SessionOperations lists session operations, sorted
func (d *Dispatcher) SessionOperations() []string {
	var out []string
	for name := range d.ops {
		if sessionOps[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) registry() map[string]operation {
	lookup := func(h handler) operation { return operation{tool: toolLookup, run: h} }
	composite := func(h handler) operation { return operation{tool: toolComposite, run: h} }

	return map[string]operation{
		// Reads
		"lookup":           lookup(d.handleLookup),
		"search":           lookup(d.handleSearch),
		"overview":         lookup(d.handleOverview),
		"list_notes":       lookup(d.handleListNotes),
		"get_fact":         lookup(d.handleGetFact),
		"list_facts":       lookup(d.handleListFacts),
		"embedding_health": lookup(d.handleEmbeddingHealth),

		// Arc analytics
		"arc_history":    composite(d.handleArcHistory),
		"arc_comparison": composite(d.handleArcComparison),
		"arc_drift":      composite(d.handleArcDrift),
		"arc_moment":     lookup(d.handleArcMoment),

		// Perception analytics
		"perception_gap":    composite(d.handlePerceptionGap),
		"perception_matrix": composite(d.handlePerceptionMatrix),
		"perception_shift":  composite(d.handlePerceptionShift),

		// Vector arithmetic
		"growth_vector":        composite(d.handleGrowthVector),
		"misperception_vector": composite(d.handleMisperceptionVector),
		"convergence_analysis": composite(d.handleConvergence),
		"semantic_midpoint":    composite(d.handleSemanticMidpoint),
		"similar_entities":     composite(d.handleSimilarEntities),

		// Narrative phases
		"detect_phases":      composite(d.handleDetectPhases),
		"load_phases":        composite(d.handleLoadPhases),
		"query_around":       composite(d.handleQueryAround),
		"detect_transitions": composite(d.handleDetectTransitions),
		"save_phases":        composite(d.handleSavePhases),
		"clear_phases":       lookup(d.handleClearPhases),

		// Graph analytics
		"infer_roles":        composite(d.handleInferRoles),
		"centrality_metrics": composite(d.handleCentralityMetrics),
		"generate_graph":     composite(d.handleGenerateGraph),

		// Tension analysis
		"narrative_tensions": composite(d.handleNarrativeTensions),
		"tension_matrix":     composite(d.handleTensionMatrix),

		// Consistency
		"validate_entity":   composite(d.handleValidateEntity),
		"check_consistency": composite(d.handleCheckConsistency),
		"what_if":           composite(d.handleWhatIf),

		// Composite reports
		"situation_report":       composite(d.handleSituationReport),
		"character_dossier":      composite(d.handleCharacterDossier),
		"knowledge_gap_analysis": composite(d.handleKnowledgeGaps),
		"dramatic_irony_report":  composite(d.handleDramaticIrony),
		"knowledge_conflicts":    composite(d.handleKnowledgeConflicts),
		"analyze_impact":         composite(d.handleAnalyzeImpact),

		// Model-backed classification
		"emotions":          lookup(d.handleEmotions),
		"themes":            lookup(d.handleThemes),
		"extract_entities":  lookup(d.handleExtractEntities),
		"annotate_entities": lookup(d.handleAnnotateEntities),

		// Entity mutations
		"create_character":    lookup(d.handleCreateCharacter),
		"create_location":     lookup(d.handleCreateLocation),
		"create_event":        lookup(d.handleCreateEvent),
		"create_scene":        lookup(d.handleCreateScene),
		"record_knowledge":    lookup(d.handleRecordKnowledge),
		"record_perception":   lookup(d.handleRecordPerception),
		"create_relationship": lookup(d.handleCreateRelationship),
		"update":              lookup(d.handleUpdate),
		"delete":              lookup(d.handleDelete),
		"protect_entity":      lookup(d.handleProtect(true)),
		"unprotect_entity":    lookup(d.handleProtect(false)),

		// Notes and facts
		"create_note": lookup(d.handleCreateNote),
		"attach_note": lookup(d.handleAttachNote),
		"detach_note": lookup(d.handleDetachNote),
		"create_fact": lookup(d.handleCreateFact),
		"update_fact": lookup(d.handleUpdateFact),
		"delete_fact": lookup(d.handleDeleteFact),
		"link_fact":   lookup(d.handleLinkFact),
		"unlink_fact": lookup(d.handleUnlinkFact),

		// Batch mutations
		"batch_create_characters":    lookup(d.batch(d.handleCreateCharacter)),
		"batch_create_locations":     lookup(d.batch(d.handleCreateLocation)),
		"batch_create_events":        lookup(d.batch(d.handleCreateEvent)),
		"batch_create_relationships": lookup(d.batch(d.handleCreateRelationship)),
		"batch_record_knowledge":     lookup(d.batch(d.handleRecordKnowledge)),

		// Embedding lifecycle
		"backfill_embeddings":    composite(d.handleBackfill),
		"baseline_arc_snapshots": composite(d.handleBaselineSnapshots),

		// World exchange
		"import_yaml":  composite(d.handleImportYaml),
		"export_world": composite(d.handleExportWorld),

		// Session state
		"get_session_context": lookup(d.handleGetSessionContext),
		"pin_entity":          lookup(d.handlePin(true)),
		"unpin_entity":        lookup(d.handlePin(false)),
		"add_decision":        lookup(d.handleAddDecision),
		"resolve_decision":    lookup(d.handleResolveDecision),
		"mark_session_end":    lookup(d.handleMarkSessionEnd),
	}
}

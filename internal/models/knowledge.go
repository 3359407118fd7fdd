// ABOUTME: Knowledge propositions and the append-only knows edge history
// ABOUTME: Certainty changes append new edges; the full sequence is the record
package models

import "time"

// Certainty describes how a character holds a fact.
type Certainty string

const (
	CertaintyKnows           Certainty = "knows"
	CertaintySuspects        Certainty = "suspects"
	CertaintyBelievesWrongly Certainty = "believes_wrongly"
	CertaintyDenies          Certainty = "denies"
	CertaintyUncertain       Certainty = "uncertain"
	CertaintyUnknown         Certainty = "unknown"
)

// LearningMethod describes how a character came to hold a fact.
type LearningMethod string

const (
	LearnedInitial   LearningMethod = "initial"
	LearnedWitnessed LearningMethod = "witnessed"
	LearnedToldBy    LearningMethod = "told"
	LearnedInferred  LearningMethod = "deduced"
	LearnedOverheard LearningMethod = "overheard"
	LearnedRead      LearningMethod = "read"
)

// Knowledge is an atomic proposition owned by a character.
type Knowledge struct {
	ID          string `json:"id" yaml:"id"`
	CharacterID string `json:"character" yaml:"character"`
	Fact        string `json:"fact" yaml:"fact"`
	EmbeddingState
	Timestamps
}

// KnowledgeEdge is one entry in the append-only knows history
// (character -> knowledge). A certainty change inserts a new edge;
// existing edges are never mutated.
type KnowledgeEdge struct {
	ID              string         `json:"id" yaml:"id"`
	CharacterID     string         `json:"character" yaml:"character"`
	KnowledgeID     string         `json:"knowledge" yaml:"knowledge"`
	Certainty       Certainty      `json:"certainty" yaml:"certainty"`
	LearningMethod  LearningMethod `json:"learning_method,omitempty" yaml:"learning_method,omitempty"`
	EventID         string         `json:"event,omitempty" yaml:"event,omitempty"`
	SourceCharacter string         `json:"source_character,omitempty" yaml:"source_character,omitempty"`
	TruthValue      *bool          `json:"truth_value,omitempty" yaml:"truth_value,omitempty"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at,omitempty"`
}

// ABOUTME: Persisted narrative phases and their set-valued memberships
// ABOUTME: Soft multi-membership is a relation, not a single pointer
package models

// Phase is a persisted narrative phase ("act") produced by temporal clustering.
type Phase struct {
	ID               string         `json:"id"`
	Label            string         `json:"label"`
	PhaseOrder       int            `json:"phase_order"`
	SequenceRangeMin *int64         `json:"sequence_range_min,omitempty"`
	SequenceRangeMax *int64         `json:"sequence_range_max,omitempty"`
	EntityTypeCounts map[string]int `json:"entity_type_counts,omitempty"`
	WeightContent    float64        `json:"weight_content"`
	WeightNeighbor   float64        `json:"weight_neighborhood"`
	WeightTemporal   float64        `json:"weight_temporal"`
	MemberCount      int            `json:"member_count"`
	Timestamps
}

// PhaseMembership is the belongs_to_phase edge (entity -> phase).
// An entity may belong to several phases; bridge detection reads the set.
type PhaseMembership struct {
	EntityID         string   `json:"entity"`
	PhaseID          string   `json:"phase"`
	EntityType       string   `json:"entity_type"`
	EntityName       string   `json:"entity_name"`
	Centrality       float64  `json:"centrality"`
	SequencePosition *float64 `json:"sequence_position,omitempty"`
}

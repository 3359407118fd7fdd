// ABOUTME: The closed set of entity types and their table/embedding traits
// ABOUTME: Shared by storage, search, backfill, and the temporal service
package models

// EntityType names one of the typed tables in the world graph.
type EntityType string

const (
	TypeCharacter    EntityType = "character"
	TypeLocation     EntityType = "location"
	TypeEvent        EntityType = "event"
	TypeScene        EntityType = "scene"
	TypeKnowledge    EntityType = "knowledge"
	TypeNote         EntityType = "note"
	TypeFact         EntityType = "fact"
	TypePhase        EntityType = "phase"
	TypePerception   EntityType = "perception"
	TypeRelationship EntityType = "relationship"
)

// AllTypes lists every entity type.
func AllTypes() []EntityType {
	return []EntityType{
		TypeCharacter, TypeLocation, TypeEvent, TypeScene,
		TypeKnowledge, TypeNote, TypeFact, TypePhase,
		TypePerception, TypeRelationship,
	}
}

// EmbeddableTypes lists the entity types that carry embedding state.
func EmbeddableTypes() []EntityType {
	return []EntityType{
		TypeCharacter, TypeLocation, TypeEvent, TypeScene,
		TypeKnowledge, TypeNote, TypePerception, TypeRelationship,
	}
}

// SearchableTypes lists the types covered by keyword and semantic search.
func SearchableTypes() []EntityType {
	return []EntityType{
		TypeCharacter, TypeLocation, TypeEvent, TypeScene,
		TypeKnowledge, TypeNote, TypeFact,
	}
}

// HasEmbeddings reports whether the type participates in the embedding
// lifecycle.
func (t EntityType) HasEmbeddings() bool {
	for _, e := range EmbeddableTypes() {
		if e == t {
			return true
		}
	}
	return false
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	for _, e := range AllTypes() {
		if e == t {
			return true
		}
	}
	return false
}

// ABOUTME: Model-produced annotations attached to entities
// ABOUTME: Stores classifier and NER output with model provenance
package models

import "time"

// Annotation is structured model output (emotions, themes, NER spans)
// attached to an entity.
type Annotation struct {
	ID           string         `json:"id"`
	EntityID     string         `json:"entity_id"`
	ModelType    string         `json:"model_type"`
	ModelVersion string         `json:"model_version,omitempty"`
	Output       map[string]any `json:"output"`
	CreatedAt    time.Time      `json:"created_at"`
}

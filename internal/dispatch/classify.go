// ABOUTME: Model-backed classification handlers: emotions, themes, NER
// ABOUTME: Results persist as annotations with model provenance
package dispatch

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/ids"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
)

// Multi-label activation thresholds; scores below still report but do
// not count as active.
const (
	emotionThreshold = 0.3
	themeThreshold   = 0.5
)

// emotionLabels is the GoEmotions label set
var emotionLabels = []string{
	"admiration", "amusement", "anger", "annoyance", "approval", "caring",
	"confusion", "curiosity", "desire", "disappointment", "disapproval",
	"disgust", "embarrassment", "excitement", "fear", "gratitude", "grief",
	"joy", "love", "nervousness", "optimism", "pride", "realization",
	"relief", "remorse", "sadness", "surprise", "neutral",
}

// defaultThemes is the candidate set when a caller names none
var defaultThemes = []string{
	"love", "betrayal", "revenge", "identity", "power", "loss",
	"redemption", "sacrifice", "justice", "freedom", "deception",
	"loyalty", "corruption", "growth", "family", "war", "survival",
	"ambition", "fate", "morality",
}

func (d *Dispatcher) handleEmotions(ctx context.Context, c *call) (any, []string, []string, error) {
	return d.classifyOne(ctx, c, "emotion", emotionLabels, emotionThreshold)
}

func (d *Dispatcher) handleThemes(ctx context.Context, c *call) (any, []string, []string, error) {
	labels := c.params.strs("themes")
	if len(labels) == 0 {
		labels = defaultThemes
	}
	return d.classifyOne(ctx, c, "theme", labels, themeThreshold)
}

func (d *Dispatcher) classifyOne(ctx context.Context, c *call, modelType string, labels []string, threshold float64) (any, []string, []string, error) {
	if !d.backend.Capabilities().CanClassify {
		return nil, nil, nil, embed.ErrUnavailable()
	}
	entityID, text, err := d.entityText(c)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := d.classify(ctx, entityID, text, modelType, labels, threshold)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, []string{entityID}, nil, nil
}

func (d *Dispatcher) handleExtractEntities(ctx context.Context, c *call) (any, []string, []string, error) {
	if !d.backend.Capabilities().CanNER {
		return nil, nil, nil, embed.ErrUnavailable()
	}
	entityID, text, err := d.entityText(c)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := d.extract(ctx, entityID, text)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, []string{entityID}, nil, nil
}

// annotateResult summarizes one annotation pipeline run
type annotateResult struct {
	Entities int `json:"entities"`
	Emotions int `json:"emotions"`
	Themes   int `json:"themes"`
	Ner      int `json:"ner"`
}

// handleAnnotateEntities streams entities through whichever classifiers
// the backend supports and persists every output.
func (d *Dispatcher) handleAnnotateEntities(ctx context.Context, c *call) (any, []string, []string, error) {
	caps := d.backend.Capabilities()
	if !caps.CanClassify && !caps.CanNER {
		return nil, nil, nil, embed.ErrUnavailable()
	}
	entityIDs := c.params.strs("entity_ids")
	if len(entityIDs) == 0 {
		return nil, nil, nil, narraerr.Validation("missing required parameter \"entity_ids\"")
	}

	result := &annotateResult{}
	var accessed []string
	for _, entityID := range entityIDs {
		id, err := ids.Parse(entityID)
		if err != nil {
			return nil, nil, nil, narraerr.Validation("invalid entity id %q", entityID)
		}
		text, err := d.render.Render(models.EntityType(id.Table), entityID)
		if err != nil {
			return nil, nil, nil, err
		}
		if caps.CanClassify {
			if _, err := d.classify(ctx, entityID, text, "emotion", emotionLabels, emotionThreshold); err != nil {
				return nil, nil, nil, err
			}
			result.Emotions++
			if _, err := d.classify(ctx, entityID, text, "theme", defaultThemes, themeThreshold); err != nil {
				return nil, nil, nil, err
			}
			result.Themes++
		}
		if caps.CanNER {
			if _, err := d.extract(ctx, entityID, text); err != nil {
				return nil, nil, nil, err
			}
			result.Ner++
		}
		result.Entities++
		accessed = append(accessed, entityID)
	}
	return result, accessed, nil, nil
}

// entityText resolves the entity_id parameter to its rendered composite
func (d *Dispatcher) entityText(c *call) (string, string, error) {
	entityID, err := c.params.requireStr("entity_id")
	if err != nil {
		return "", "", err
	}
	id, err := ids.Parse(entityID)
	if err != nil {
		return "", "", narraerr.Validation("invalid entity id %q", entityID)
	}
	text, err := d.render.Render(models.EntityType(id.Table), entityID)
	if err != nil {
		return "", "", err
	}
	return entityID, text, nil
}

func (d *Dispatcher) classify(ctx context.Context, entityID, text, modelType string, labels []string, threshold float64) (*models.Annotation, error) {
	results, err := d.backend.Classify(ctx, []string{text}, labels)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, narraerr.New(narraerr.KindModel,
			"classifier returned %d results for one input", len(results))
	}

	scores := results[0]
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	dominant := "neutral"
	if len(scores) > 0 {
		dominant = scores[0].Label
	}
	active := 0
	for _, s := range scores {
		if s.Score >= threshold {
			active++
		}
	}

	a := &models.Annotation{
		ID:        "annotation:" + uuid.NewString(),
		EntityID:  entityID,
		ModelType: modelType,
		Output: map[string]any{
			"scores":       scores,
			"dominant":     dominant,
			"active_count": active,
		},
	}
	if err := d.store.Annotations.Save(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (d *Dispatcher) extract(ctx context.Context, entityID, text string) (*models.Annotation, error) {
	results, err := d.backend.ExtractEntities(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, narraerr.New(narraerr.KindModel,
			"extractor returned %d results for one input", len(results))
	}

	a := &models.Annotation{
		ID:        "annotation:" + uuid.NewString(),
		EntityID:  entityID,
		ModelType: "ner",
		Output: map[string]any{
			"spans": results[0],
			"count": len(results[0]),
		},
	}
	if err := d.store.Annotations.Save(a); err != nil {
		return nil, err
	}
	return a, nil
}

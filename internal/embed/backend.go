// ABOUTME: Embedding backend abstraction with capability flags
// ABOUTME: Semantic features degrade cleanly when no backend is available
package embed

import (
	"context"

	"github.com/florinutz/narra/internal/narraerr"
)

// Capabilities describes which model operations a backend supports.
// Callers check the relevant flag before offering a semantic feature.
type Capabilities struct {
	CanEncode   bool
	CanRerank   bool
	CanClassify bool
	CanNER      bool
	CanNLI      bool
}

// ClassLabel is one scored label from a classifier
type ClassLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Span is one extracted named-entity mention
type Span struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Backend produces embedding vectors and model annotations. All
// operations take a context and can fail with a model_unavailable error.
type Backend interface {
	// Encode embeds a batch of texts, one vector per input, in order
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Rerank scores docs against a query, higher is more relevant
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
	// Classify scores each text against candidate labels, one list per input
	Classify(ctx context.Context, texts []string, labels []string) ([][]ClassLabel, error)
	// ExtractEntities finds named-entity mentions in each text
	ExtractEntities(ctx context.Context, texts []string) ([][]Span, error)
	// NLI scores how strongly a premise entails a hypothesis, 0 to 1
	NLI(ctx context.Context, premise, hypothesis string) (float64, error)
	// Dimension is the width of vectors this backend produces
	Dimension() int
	// Capabilities reports what this backend can do
	Capabilities() Capabilities
}

// ErrUnavailable is the canonical no-backend error
func ErrUnavailable() error {
	return narraerr.New(narraerr.KindModel, "no embedding backend configured")
}

// Unavailable is the null backend used when no API key is configured.
// Every call fails with model_unavailable; capability flags are all false.
type Unavailable struct {
	Dim int
}

func (u Unavailable) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrUnavailable()
}

func (u Unavailable) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	return nil, ErrUnavailable()
}

func (u Unavailable) Classify(ctx context.Context, texts []string, labels []string) ([][]ClassLabel, error) {
	return nil, ErrUnavailable()
}

func (u Unavailable) ExtractEntities(ctx context.Context, texts []string) ([][]Span, error) {
	return nil, ErrUnavailable()
}

func (u Unavailable) NLI(ctx context.Context, premise, hypothesis string) (float64, error) {
	return 0, ErrUnavailable()
}

func (u Unavailable) Dimension() int { return u.Dim }

func (u Unavailable) Capabilities() Capabilities { return Capabilities{} }

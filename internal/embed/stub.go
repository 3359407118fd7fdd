// ABOUTME: Deterministic in-process embedding backend for tests
// ABOUTME: Hashes token counts into a fixed-width vector, no network
package embed

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/florinutz/narra/internal/vmath"
)

// Stub is a deterministic local backend. The same text always produces the
// same vector, and texts sharing words produce similar vectors, which is
// enough for exercising ranking and lifecycle logic in tests.
type Stub struct {
	Dim int
}

// NewStub creates a stub backend of the given dimension
func NewStub(dim int) *Stub {
	return &Stub{Dim: dim}
}

func (s *Stub) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.encodeOne(t)
	}
	return out, nil
}

func (s *Stub) encodeOne(text string) []float32 {
	vec := make([]float32, s.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%s.Dim] += 1
	}
	return vmath.Normalize(vec)
}

func (s *Stub) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.encodeOne(query)
	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = float64(vmath.CosineSimilarity(q, s.encodeOne(d)))
	}
	return scores, nil
}

func (s *Stub) Classify(ctx context.Context, texts []string, labels []string) ([][]ClassLabel, error) {
	return nil, ErrUnavailable()
}

func (s *Stub) ExtractEntities(ctx context.Context, texts []string) ([][]Span, error) {
	return nil, ErrUnavailable()
}

func (s *Stub) NLI(ctx context.Context, premise, hypothesis string) (float64, error) {
	return 0, ErrUnavailable()
}

func (s *Stub) Dimension() int { return s.Dim }

func (s *Stub) Capabilities() Capabilities {
	return Capabilities{CanEncode: true, CanRerank: true}
}

// ABOUTME: Tests for the deterministic stub and null backends
// ABOUTME: Vector determinism, unit norms, and unavailable-error kinds
package embed

import (
	"context"
	"math"
	"testing"

	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/vmath"
)

func TestStub_Deterministic(t *testing.T) {
	s := NewStub(8)
	ctx := context.Background()

	a, err := s.Encode(ctx, []string{"the harbor at dawn"})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	b, err := s.Encode(ctx, []string{"the harbor at dawn"})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("same text produced different vectors")
		}
	}

	var norm float64
	for _, v := range a[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("vector norm = %f, want 1", math.Sqrt(norm))
	}
}

func TestStub_SharedWordsAreCloser(t *testing.T) {
	s := NewStub(64)
	vecs, err := s.Encode(context.Background(), []string{
		"the harbor at dawn",
		"the harbor at dusk",
	})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	sim := vmath.CosineSimilarity(vecs[0], vecs[1])
	if sim <= 0.5 {
		t.Errorf("similarity = %f, want overlapping texts close together", sim)
	}
}

func TestStub_Capabilities(t *testing.T) {
	s := NewStub(8)
	caps := s.Capabilities()
	if !caps.CanEncode || !caps.CanRerank {
		t.Errorf("capabilities = %+v, want encode and rerank", caps)
	}
	if s.Dimension() != 8 {
		t.Errorf("Dimension() = %d, want 8", s.Dimension())
	}
}

func TestStub_CancelledContext(t *testing.T) {
	s := NewStub(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Encode(ctx, []string{"x"}); err == nil {
		t.Error("Encode() succeeded with a cancelled context")
	}
}

func TestUnavailable(t *testing.T) {
	u := Unavailable{Dim: 8}
	if caps := u.Capabilities(); caps.CanEncode || caps.CanRerank {
		t.Errorf("capabilities = %+v, want none", caps)
	}
	_, err := u.Encode(context.Background(), []string{"x"})
	if !narraerr.Is(err, narraerr.KindModel) {
		t.Errorf("Encode() error = %v, want model_unavailable", err)
	}
	_, err = u.Rerank(context.Background(), "q", []string{"d"})
	if !narraerr.Is(err, narraerr.KindModel) {
		t.Errorf("Rerank() error = %v, want model_unavailable", err)
	}
	_, err = u.Classify(context.Background(), []string{"x"}, []string{"joy"})
	if !narraerr.Is(err, narraerr.KindModel) {
		t.Errorf("Classify() error = %v, want model_unavailable", err)
	}
	_, err = u.ExtractEntities(context.Background(), []string{"x"})
	if !narraerr.Is(err, narraerr.KindModel) {
		t.Errorf("ExtractEntities() error = %v, want model_unavailable", err)
	}
	_, err = u.NLI(context.Background(), "p", "h")
	if !narraerr.Is(err, narraerr.KindModel) {
		t.Errorf("NLI() error = %v, want model_unavailable", err)
	}
}

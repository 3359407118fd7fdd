// ABOUTME: Benchmark runner: seeds the fixture, backfills, runs scenarios
// ABOUTME: Produces per-scenario and aggregate retrieval metrics as a report

package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/florinutz/narra/internal/backfill"
	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/search"
	"github.com/florinutz/narra/internal/storage"
)

// cutoff is the rank depth metrics are evaluated at.
const cutoff = 5

// ScenarioResult is one scenario's outcome
type ScenarioResult struct {
	Scenario Scenario      `json:"scenario"`
	Metrics  Metrics       `json:"metrics"`
	Returned []string      `json:"returned"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Err      string        `json:"error,omitempty"`
}

// Report is the full benchmark outcome
type Report struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Aggregate Metrics          `json:"aggregate"`
	Embedded  int              `json:"embedded_entities"`
}

// Runner executes retrieval scenarios against a seeded world
type Runner struct {
	store    *storage.Storage
	backend  embed.Backend
	searcher *search.Service
}

// NewRunner creates a benchmark runner over its own in-memory world
func NewRunner(backend embed.Backend) (*Runner, error) {
	store, err := storage.OpenInMemory(backend.Dimension())
	if err != nil {
		return nil, fmt.Errorf("failed to open benchmark storage: %w", err)
	}
	return &Runner{
		store:    store,
		backend:  backend,
		searcher: search.NewService(store, backend),
	}, nil
}

// Close releases the runner's storage
func (r *Runner) Close() error {
	return r.store.Close()
}

// Run seeds the fixture, backfills embeddings, and scores every scenario
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := SeedFixture(r.store); err != nil {
		return nil, err
	}

	report := &Report{}
	if r.backend.Capabilities().CanEncode {
		stats, err := backfill.NewService(r.store, r.backend).Run(ctx, backfill.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to backfill benchmark world: %w", err)
		}
		report.Embedded = stats.Embedded
		r.searcher.Invalidate()
	}

	var scored []Metrics
	for _, sc := range Scenarios() {
		result := r.runScenario(ctx, sc)
		report.Scenarios = append(report.Scenarios, result)
		if result.Err == "" {
			scored = append(scored, result.Metrics)
		}
	}
	report.Aggregate = Aggregate(scored)
	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, sc Scenario) ScenarioResult {
	result := ScenarioResult{Scenario: sc}

	start := time.Now()
	hits, err := r.searcher.Search(ctx, sc.Query, search.Options{
		Mode:  sc.Mode,
		Limit: cutoff,
	})
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	for _, h := range hits {
		result.Returned = append(result.Returned, h.EntityID)
	}
	result.Metrics = Score(result.Returned, sc.Relevant, cutoff)
	return result
}

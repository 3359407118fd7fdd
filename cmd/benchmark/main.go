// ABOUTME: Command-line runner for the retrieval quality benchmarks
// ABOUTME: Scores search modes against the fixture world and writes JSON

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/florinutz/narra/benchmarks/retrieval"
	"github.com/florinutz/narra/internal/config"
	"github.com/florinutz/narra/internal/embed"
)

func main() {
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	offline := flag.Bool("offline", false, "Use the deterministic offline encoder instead of OpenAI")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (continuing anyway): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	backend := pickBackend(cfg, *offline)

	runner, err := retrieval.NewRunner(backend)
	if err != nil {
		log.Fatalf("failed to create runner: %v", err)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Printf("Warning: error closing runner: %v", err)
		}
	}()

	report, err := runner.Run(context.Background())
	if err != nil {
		log.Fatalf("benchmark run failed: %v", err)
	}

	for _, sc := range report.Scenarios {
		status := fmt.Sprintf("p@5=%.2f r@5=%.2f mrr=%.2f",
			sc.Metrics.PrecisionAtK, sc.Metrics.RecallAtK, sc.Metrics.MRR)
		if sc.Err != "" {
			status = "error: " + sc.Err
		}
		fmt.Printf("%-30s %-8s %s\n", sc.Scenario.Name, sc.Scenario.Mode, status)
	}
	fmt.Printf("\naggregate: p@5=%.2f r@5=%.2f mrr=%.2f (embedded %d entities)\n",
		report.Aggregate.PrecisionAtK, report.Aggregate.RecallAtK, report.Aggregate.MRR,
		report.Embedded)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		log.Fatalf("failed to write %s: %v", *outputPath, err)
	}
	fmt.Printf("results written to %s\n", *outputPath)
}

// pickBackend prefers OpenAI; without a key or with -offline it falls
// back to the deterministic stub so runs stay reproducible.
func pickBackend(cfg *config.Config, offline bool) embed.Backend {
	if !offline && cfg.OpenAIKey != "" {
		backend, err := embed.NewOpenAIBackend(cfg)
		if err == nil {
			return backend
		}
		log.Printf("Warning: failed to initialize OpenAI backend, running offline: %v", err)
	}
	return embed.NewStub(cfg.EmbeddingDimension)
}

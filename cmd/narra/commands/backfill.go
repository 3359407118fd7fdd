// ABOUTME: CLI command to run embedding backfills
// ABOUTME: Batch-encodes stale entities and reports per-batch progress
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/florinutz/narra/internal/backfill"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/progress"
)

var (
	backfillTypes    []string
	backfillBatch    int
	backfillBaseline bool
)

// NewBackfillCmd creates the backfill command
func NewBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed stale entities",
		Long: `Embed all entities whose text changed since their last embedding.

Entities that drift far enough from their previous embedding get an
arc snapshot recorded. Requires an embedding backend (OPENAI_API_KEY).

Examples:
  narra backfill
  narra backfill --type character --type scene
  narra backfill --baseline`,
		RunE: runBackfill,
	}

	cmd.Flags().StringArrayVar(&backfillTypes, "type", nil, "Restrict to entity types (repeatable)")
	cmd.Flags().IntVar(&backfillBatch, "batch-size", 0, "Texts per encode call (0 uses NARRA_BACKFILL_BATCH_SIZE)")
	cmd.Flags().BoolVar(&backfillBaseline, "baseline", false, "Snapshot every re-embedded entity regardless of drift")

	return cmd
}

func runBackfill(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var types []models.EntityType
	for _, t := range backfillTypes {
		types = append(types, models.EntityType(t))
	}

	var reporter progress.Reporter = progress.Nop{}
	if !quiet {
		reporter = progress.Func(func(stage string, done, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d/%d\n", stage, done, total)
		})
	}

	batch := backfillBatch
	if batch <= 0 {
		batch = e.cfg.BackfillBatchSize
	}

	svc := backfill.NewService(e.store, pickBackend(e.cfg))
	stats, err := svc.Run(cmd.Context(), backfill.Options{
		Types:             types,
		BatchSize:         batch,
		SnapshotThreshold: e.cfg.SnapshotThreshold,
		ForceBaseline:     backfillBaseline,
		Reporter:          reporter,
	})
	if err != nil {
		return fmt.Errorf("backfilling: %w", err)
	}
	e.dispatcher.Searcher().Invalidate()

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonData)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d of %d entities (%d skipped, %d failed, %d snapshots)\n",
		stats.Embedded, stats.TotalEntities, stats.Skipped, stats.Failed, stats.Snapshots)
	return nil
}

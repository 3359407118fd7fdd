// ABOUTME: CLI commands for YAML world export and import
// ABOUTME: Round-trippable world state for versioning and hand editing
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/florinutz/narra/internal/export"
)

var importOnConflict string

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the world as YAML",
		Long: `Export all world state as YAML to a file, or stdout with no argument.

Embeddings are not exported; they are machine-local and regenerate on
the next backfill after import.

Examples:
  narra export world.yaml
  narra export > world.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			svc := export.NewService(e.store)
			if len(args) == 0 {
				return svc.Export(cmd.OutOrStdout())
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			defer f.Close()
			if err := svc.Export(f); err != nil {
				return fmt.Errorf("exporting world: %w", err)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported world to %s\n", args[0])
			}
			return nil
		},
	}

	return cmd
}

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML world export",
		Long: `Import world state from a YAML export.

By default an entity ID that already exists aborts the import. Use
--on-conflict skip to keep existing entities, or update to overwrite
them.

Examples:
  narra import world.yaml
  narra import --on-conflict update world.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			stats, err := export.NewService(e.store).Import(f, export.ConflictMode(importOnConflict))
			if err != nil {
				return fmt.Errorf("importing world: %w", err)
			}
			e.dispatcher.Searcher().Invalidate()

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported: %d created, %d updated, %d skipped\n",
					stats.Created, stats.Updated, stats.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&importOnConflict, "on-conflict", "error", "Conflict handling: error, skip, update")

	return cmd
}

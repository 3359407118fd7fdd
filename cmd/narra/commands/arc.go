// ABOUTME: CLI commands for arc analytics over snapshot histories
// ABOUTME: History, comparison, drift ranking, and point-in-time moments
package commands

import (
	"github.com/spf13/cobra"
)

var (
	arcWindow string
	arcLimit  int
)

// NewArcCmd creates the arc command group
func NewArcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arc",
		Short: "Analyze character and entity arcs",
		Long: `Analyze how entities move through latent space over time.

Arcs are built from embedding snapshots taken during backfills when an
entity drifts past the snapshot threshold.

Examples:
  narra arc history character:alice
  narra arc history --window recent:5 character:alice
  narra arc compare character:alice character:bob
  narra arc drift --limit 5
  narra arc moment character:alice event:the-fall`,
	}

	history := &cobra.Command{
		Use:   "history <entity-id>",
		Short: "Show an entity's arc steps and net displacement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			params := map[string]any{"entity_id": args[0]}
			if arcWindow != "" {
				params["window"] = arcWindow
			}
			return runOp(cmd, e, "arc_history", params, 0)
		},
	}
	history.Flags().StringVar(&arcWindow, "window", "", `Limit to the newest snapshots, e.g. "recent:5"`)

	compare := &cobra.Command{
		Use:   "compare <entity-a> <entity-b>",
		Short: "Compare two arcs for convergence and trajectory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "arc_comparison", map[string]any{
				"entity_a": args[0],
				"entity_b": args[1],
			}, 0)
		},
	}

	drift := &cobra.Command{
		Use:   "drift",
		Short: "Rank entities by how far they have moved",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "arc_drift", map[string]any{"limit": arcLimit}, 0)
		},
	}
	drift.Flags().IntVar(&arcLimit, "limit", 10, "Maximum entities to rank")

	moment := &cobra.Command{
		Use:   "moment <entity-id> <event-id>",
		Short: "Show who an entity was at the time of an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "arc_moment", map[string]any{
				"entity_id": args[0],
				"event_id":  args[1],
			}, 0)
		},
	}

	cmd.AddCommand(history, compare, drift, moment)
	return cmd
}

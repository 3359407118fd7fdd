// ABOUTME: CLI command for tension analysis between characters
// ABOUTME: Pairwise signals or a ranked hotspot list across the cast
package commands

import (
	"github.com/spf13/cobra"
)

var tensionsLimit int

// NewTensionsCmd creates the tensions command
func NewTensionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tensions [character-a] [character-b]",
		Short: "Find dramatic tension between characters",
		Long: `Analyze dramatic tension signals: contradictory knowledge, denial,
conflicting loyalties, and opposing desires.

With two characters the pair is analyzed in detail. With none, all
pairs are ranked by severity.

Examples:
  narra tensions
  narra tensions Alice Bob
  narra tensions --limit 5`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			if len(args) == 2 {
				return runOp(cmd, e, "narrative_tensions", map[string]any{
					"character_a": args[0],
					"character_b": args[1],
				}, 0)
			}
			return runOp(cmd, e, "tension_matrix", map[string]any{"limit": tensionsLimit}, 0)
		},
	}

	cmd.Flags().IntVar(&tensionsLimit, "limit", 10, "Maximum pairs to rank")

	return cmd
}

// ABOUTME: CLI command for narrative role inference
// ABOUTME: Infers structural roles from graph shape and knowledge patterns
package commands

import (
	"github.com/spf13/cobra"
)

var rolesLimit int

// NewRolesCmd creates the roles command
func NewRolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles [character]",
		Short: "Infer narrative roles from story structure",
		Long: `Infer narrative roles (social hub, bridge, enigma, keeper of secrets)
from relationship structure, knowledge patterns, and character traits.

With no argument every character is analyzed, most confident first.

Examples:
  narra roles
  narra roles Alice
  narra roles --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			params := map[string]any{"limit": rolesLimit}
			if len(args) == 1 {
				params["character_id"] = args[0]
			}
			return runOp(cmd, e, "infer_roles", params, 0)
		},
	}

	cmd.Flags().IntVar(&rolesLimit, "limit", 0, "Maximum characters to analyze (0 means all)")

	return cmd
}

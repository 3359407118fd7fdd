// ABOUTME: Generic escape hatch exposing the full operation set on the CLI
// ABOUTME: Takes an operation name and raw JSON params, prints the response
package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	opParams string
	opBudget int
)

// NewOpCmd creates the op command
func NewOpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "op <operation>",
		Short: "Run any operation by name",
		Long: `Run any operation from the closed operation set by name.

Parameters are passed as a JSON object. This is the same dispatch
surface the MCP server exposes, so anything an agent can do, the CLI
can do.

Examples:
  narra op overview
  narra op lookup --params '{"entity_id": "character:alice"}'
  narra op character_dossier --params '{"character_id": "alice"}' --budget 4000
  narra op operations`,
		Args: cobra.ExactArgs(1),
		RunE: runOpCommand,
	}

	cmd.Flags().StringVar(&opParams, "params", "", "Operation parameters as a JSON object")
	cmd.Flags().IntVar(&opBudget, "budget", 0, "Response token budget (0 uses the operation default)")

	return cmd
}

func runOpCommand(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	operation := args[0]

	// "operations" lists the operation set instead of dispatching
	if operation == "operations" {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(e.dispatcher.Operations(), "\n"))
		return nil
	}

	var params map[string]any
	if opParams != "" {
		if err := json.Unmarshal([]byte(opParams), &params); err != nil {
			return fmt.Errorf("invalid --params JSON: %w", err)
		}
	}

	return runOp(cmd, e, operation, params, opBudget)
}

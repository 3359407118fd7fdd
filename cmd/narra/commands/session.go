// ABOUTME: CLI commands for authoring session state
// ABOUTME: Orientation context, pinned entities, and pending decisions
package commands

import (
	"github.com/spf13/cobra"
)

// NewSessionCmd creates the session command group
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the authoring session",
		Long: `Manage persistent session state: orientation context sized to how
long you have been away, pinned entities, and pending decisions.

Examples:
  narra session context
  narra session pin character:alice
  narra session unpin character:alice
  narra session decide "Does Bob learn the truth in act two?"
  narra session resolve decision:1f0e...
  narra session end`,
	}

	context := &cobra.Command{
		Use:   "context",
		Short: "Show orientation for the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "get_session_context", nil, 0)
		},
	}

	pin := &cobra.Command{
		Use:   "pin <entity-id>",
		Short: "Pin an entity so it stays in the orientation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "pin_entity", map[string]any{"entity_id": args[0]}, 0)
		},
	}

	unpin := &cobra.Command{
		Use:   "unpin <entity-id>",
		Short: "Unpin an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "unpin_entity", map[string]any{"entity_id": args[0]}, 0)
		},
	}

	decide := &cobra.Command{
		Use:   "decide <description>",
		Short: "Record a pending authorial decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "add_decision", map[string]any{"description": args[0]}, 0)
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve <decision-id>",
		Short: "Resolve a pending decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "resolve_decision", map[string]any{"decision_id": args[0]}, 0)
		},
	}

	end := &cobra.Command{
		Use:   "end",
		Short: "Mark the current session as ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "mark_session_end", nil, 0)
		},
	}

	cmd.AddCommand(context, pin, unpin, decide, resolve, end)
	return cmd
}

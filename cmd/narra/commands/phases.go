// ABOUTME: CLI commands for narrative phase clustering
// ABOUTME: Detect, show, and clear phases over embedded entities
package commands

import (
	"github.com/spf13/cobra"
)

var phasesK int

// NewPhasesCmd creates the phases command group
func NewPhasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phases",
		Short: "Cluster the story into narrative phases",
		Long: `Cluster embedded entities into narrative phases.

Phases group entities by content, shared scenes, and timeline position.
Detection overwrites previously saved phases.

Examples:
  narra phases detect
  narra phases detect --k 4
  narra phases show
  narra phases transitions
  narra phases clear`,
	}

	detect := &cobra.Command{
		Use:   "detect",
		Short: "Detect phases and save them",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			params := map[string]any{}
			if phasesK > 0 {
				params["k"] = phasesK
			}
			return runOp(cmd, e, "save_phases", params, 0)
		},
	}
	detect.Flags().IntVar(&phasesK, "k", 0, "Number of phases (0 picks automatically)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show saved phases, detecting if none are saved",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "load_phases", nil, 0)
		},
	}

	transitions := &cobra.Command{
		Use:   "transitions",
		Short: "Show entities bridging multiple phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "detect_transitions", nil, 0)
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete saved phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return runOp(cmd, e, "clear_phases", nil, 0)
		},
	}

	cmd.AddCommand(detect, show, transitions, clear)
	return cmd
}

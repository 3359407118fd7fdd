// ABOUTME: Root CLI command with global flags shared by all subcommands
// ABOUTME: Wires the narra command tree and executes it
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	dataPath     string
	sessionPath  string
)

const banner = `
███╗   ██╗ █████╗ ██████╗ ██████╗  █████╗
████╗  ██║██╔══██╗██╔══██╗██╔══██╗██╔══██╗
██╔██╗ ██║███████║██████╔╝██████╔╝███████║
██║╚██╗██║██╔══██║██╔══██╗██╔══██╗██╔══██║
██║ ╚████║██║  ██║██║  ██║██║  ██║██║  ██║
╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "narra",
		Short: "Knowledge engine for fictional world state",
		Long: banner + `

narra tracks what is true in a fictional world and, more importantly,
who believes what: characters, places, events, scenes, layered knowledge,
perceptions, and universe facts, with hybrid retrieval and arc analytics
over embedding history.

Run 'narra mcp' to serve the world to LLM agents over stdio, or use the
subcommands directly.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table, json")
	cmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Database path (overrides NARRA_DATA_PATH)")
	cmd.PersistentFlags().StringVar(&sessionPath, "session-path", "", "Session state path (overrides NARRA_SESSION_PATH)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewMCPCmd(),
		NewOpCmd(),
		NewSearchCmd(),
		NewBackfillCmd(),
		NewPhasesCmd(),
		NewArcCmd(),
		NewValidateCmd(),
		NewRolesCmd(),
		NewTensionsCmd(),
		NewSessionCmd(),
		NewExportCmd(),
		NewImportCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

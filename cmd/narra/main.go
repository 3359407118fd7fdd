// ABOUTME: Main entry point for the narra CLI
// ABOUTME: Sets up Cobra root command and maps error kinds to exit codes
package main

import (
	"fmt"
	"os"

	"github.com/florinutz/narra/cmd/narra/commands"
	"github.com/florinutz/narra/internal/narraerr"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Set version info for commands
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes user errors (1) and blocked writes (3) from
// system failures (2).
func exitCode(err error) int {
	switch narraerr.KindOf(err) {
	case narraerr.KindValidation, narraerr.KindNotFound, narraerr.KindConflict:
		return 1
	case narraerr.KindConsistency:
		return 3
	default:
		return 2
	}
}

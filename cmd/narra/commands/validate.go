// ABOUTME: CLI command to run consistency checks against universe facts
// ABOUTME: Critical violations fail the command with a distinct exit code
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/florinutz/narra/internal/consistency"
	"github.com/florinutz/narra/internal/narraerr"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [entity-id]",
		Short: "Check the world against universe facts",
		Long: `Check entities against scoped universe facts and structural rules.

With no argument the whole world is checked: fact contradictions,
timeline ordering, circular hierarchies, and unreciprocated feelings.
With an entity ID only that entity is checked.

Critical violations of strict facts make the command fail with exit
code 3, so validation can gate a writing pipeline.

Examples:
  narra validate
  narra validate character:alice
  narra validate --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	checker := consistency.NewService(e.store)
	var report *consistency.Report
	if len(args) == 1 {
		var violations []consistency.Violation
		violations, err = checker.CheckEntity(cmd.Context(), args[0])
		if err == nil {
			report = &consistency.Report{Violations: violations, CheckedEntities: 1}
		}
	} else {
		report, err = checker.CheckAll(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("checking consistency: %w", err)
	}

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonData)
	} else {
		for _, v := range report.Violations {
			marker := ""
			if v.Intentional {
				marker = " (intentional)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s]%s %s\n", v.Severity, marker, v.Message)
			if v.SuggestedFix != "" && verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "  fix: %s\n", v.SuggestedFix)
			}
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\nChecked %d entities against %d facts: %d violation(s)\n",
				report.CheckedEntities, report.CheckedFacts, len(report.Violations))
		}
	}

	if consistency.HasCritical(report.Violations) {
		return narraerr.New(narraerr.KindConsistency, "world has critical consistency violations")
	}
	return nil
}

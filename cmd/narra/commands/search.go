// ABOUTME: CLI command to search the world
// ABOUTME: Keyword, semantic, and hybrid retrieval with table output
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/search"
)

var (
	searchLimit  int
	searchMode   string
	searchTypes  []string
	searchRerank bool
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the world",
		Long: `Search entities using keyword, semantic, or hybrid retrieval.

Hybrid search fuses full-text and vector rankings and falls back to
keyword-only when no embedding backend is configured.

Examples:
  narra search "the stolen crown"
  narra search --mode semantic --limit 10 "betrayal"
  narra search --type character --type scene "Alice"
  narra search --format json "the old mill"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum results to return")
	cmd.Flags().StringVar(&searchMode, "mode", "hybrid", "Search mode: keyword, semantic, hybrid")
	cmd.Flags().StringArrayVar(&searchTypes, "type", nil, "Restrict to entity types (repeatable)")
	cmd.Flags().BoolVar(&searchRerank, "rerank", false, "Rerank results with the embedding backend")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var types []models.EntityType
	for _, t := range searchTypes {
		types = append(types, models.EntityType(t))
	}

	results, err := e.dispatcher.Searcher().Search(cmd.Context(), args[0], search.Options{
		Mode:   search.Mode(searchMode),
		Types:  types,
		Limit:  searchLimit,
		Rerank: searchRerank,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No entities found for query: %s\n", args[0])
		}
		return nil
	}

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonData)
		return nil
	}

	// Table format
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tTYPE\tNAME\tID\tSNIPPET\n")
	fmt.Fprintf(w, "-----\t----\t----\t--\t-------\n")
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\n",
			r.Score,
			r.EntityType,
			truncate(name, 25),
			truncate(r.EntityID, 30),
			truncate(r.Snippet, 50))
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d result(s)\n", len(results))
	}
	return nil
}

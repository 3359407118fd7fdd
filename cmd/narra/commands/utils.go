// ABOUTME: Shared plumbing for CLI commands: engine setup and output
// ABOUTME: Every subcommand opens the same stack and prints the same way
package commands

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/florinutz/narra/internal/config"
	"github.com/florinutz/narra/internal/dispatch"
	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/storage"
)

// engine bundles the opened stack so commands can defer one Close
type engine struct {
	cfg        *config.Config
	store      *storage.Storage
	dispatcher *dispatch.Dispatcher
}

func (e *engine) Close() {
	if err := e.store.Close(); err != nil {
		log.Printf("Warning: error closing storage: %v", err)
	}
}

// openEngine loads config, opens storage, and wires the dispatcher
func openEngine() (*engine, error) {
	// Load .env for API keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if sessionPath != "" {
		cfg.SessionPath = sessionPath
	}

	store, err := storage.Open(cfg.DataPath, cfg.EmbeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	return &engine{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatch.New(cfg, store, pickBackend(cfg)),
	}, nil
}

// pickBackend uses OpenAI when a key is configured, else runs degraded
func pickBackend(cfg *config.Config) embed.Backend {
	if cfg.OpenAIKey == "" {
		if verbose {
			log.Println("OPENAI_API_KEY not set, semantic features disabled")
		}
		return embed.Unavailable{}
	}
	backend, err := embed.NewOpenAIBackend(cfg)
	if err != nil {
		log.Printf("Warning: failed to initialize embedding backend: %v", err)
		return embed.Unavailable{}
	}
	return backend
}

// runOp dispatches one operation and prints the response
func runOp(cmd *cobra.Command, e *engine, operation string, params map[string]any, budget int) error {
	resp, err := e.dispatcher.Dispatch(cmd.Context(), &dispatch.Request{
		Operation:   operation,
		TokenBudget: budget,
		Params:      params,
	})
	if err != nil {
		return err
	}
	return printResponse(cmd, resp)
}

// printResponse renders a dispatch response. The result is always JSON;
// hints and truncation notices go to the same stream so agents and
// humans see the same thing.
func printResponse(cmd *cobra.Command, resp *dispatch.Response) error {
	payload := resp.Result
	if verbose {
		payload = resp
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)

	if quiet || verbose {
		return nil
	}
	for _, hint := range resp.Hints {
		fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s\n", hint)
	}
	if resp.Truncated != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "truncated: %d of %d results shown\n",
			resp.Truncated.ReturnedCount, resp.Truncated.OriginalCount)
	}
	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return string(runes[:maxLen-3]) + "..."
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

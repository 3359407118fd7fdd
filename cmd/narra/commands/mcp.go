// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Enables LLM agents to read and write the world via stdio
package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/florinutz/narra/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs narra as an MCP (Model Context Protocol) server, exposing the
narrative_query, narrative_mutate, and narrative_session tools over
stdio.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an MCP client)
  narra mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "narra": {
  #       "command": "narra",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}

	if e.cfg.OpenAIKey == "" && !quiet {
		log.Println("Warning: OPENAI_API_KEY not set, semantic search and arc analytics run degraded")
	}

	server := mcpserver.NewMCPServer(
		"narra",
		versionInfo.Version,
	)
	mcp.RegisterTools(server, e.dispatcher)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		log.Println("narra MCP server starting on stdio...")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			log.Println("Shutdown signal received, gracefully shutting down...")
		}
		if err := e.dispatcher.Session().Touch(); err != nil {
			log.Printf("Warning: failed to record session end: %v", err)
		}
		e.Close()
		if !quiet {
			log.Println("Shutdown complete")
		}

	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}

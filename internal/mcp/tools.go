// ABOUTME: MCP tool definitions and registration for the narra server
// ABOUTME: Three dispatch tools carry the whole operation set
package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/florinutz/narra/internal/dispatch"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, dispatcher *dispatch.Dispatcher) *Handlers {
	handlers := &Handlers{dispatcher: dispatcher}

	// 1. narrative_query - read world state
	server.AddTool(mcp.Tool{
		Name: "narrative_query",
		Description: "Query the narrative world: lookups, hybrid search, arc and perception analytics, " +
			"phase clustering, role inference, tension analysis, consistency checks, and composite reports. " +
			"Operations: " + strings.Join(dispatcher.QueryOperations(), ", ") + ".",
		InputSchema: operationSchema("Query operation to run"),
	}, handlers.Query)

	// 2. narrative_mutate - write world state
	server.AddTool(mcp.Tool{
		Name: "narrative_mutate",
		Description: "Mutate the narrative world: create and update entities, record knowledge and perceptions, " +
			"manage notes and universe facts, run embedding backfills, and import or export YAML. " +
			"Strict universe facts block contradictory writes. " +
			"Operations: " + strings.Join(dispatcher.MutationOperations(), ", ") + ".",
		InputSchema: operationSchema("Mutation operation to run"),
	}, handlers.Mutate)

	// 3. narrative_session - authoring session state
	server.AddTool(mcp.Tool{
		Name: "narrative_session",
		Description: "Manage the authoring session: orientation context, pinned entities, recent accesses, " +
			"and pending decisions. " +
			"Operations: " + strings.Join(dispatcher.SessionOperations(), ", ") + ".",
		InputSchema: operationSchema("Session operation to run"),
	}, handlers.Session)

	return handlers
}

// operationSchema is the shared input shape of the dispatch tools
func operationSchema(opDescription string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"operation": map[string]interface{}{
				"type":        "string",
				"description": opDescription,
			},
			"params": map[string]interface{}{
				"type":        "object",
				"description": "Operation-specific parameters",
			},
			"token_budget": map[string]interface{}{
				"type":        "number",
				"description": "Response token budget (default depends on the operation, max 8000)",
			},
		},
		Required: []string{"operation"},
	}
}

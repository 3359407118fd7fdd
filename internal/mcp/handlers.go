// ABOUTME: MCP tool handler implementations for the narra server
// ABOUTME: Thin adapters from tool calls onto the operation dispatcher
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/florinutz/narra/internal/dispatch"
	"github.com/florinutz/narra/internal/narraerr"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	dispatcher *dispatch.Dispatcher
}

// Query handles the narrative_query tool
func (h *Handlers) Query(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, request, func(op string) bool {
		return !dispatch.IsMutation(op) && !dispatch.IsSession(op)
	}, "query")
}

// Mutate handles the narrative_mutate tool
func (h *Handlers) Mutate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, request, dispatch.IsMutation, "mutation")
}

// Session handles the narrative_session tool
func (h *Handlers) Session(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, request, dispatch.IsSession, "session")
}

// run extracts the dispatch request from a tool call and executes it
func (h *Handlers) run(ctx context.Context, request mcp.CallToolRequest, allowed func(string) bool, family string) (*mcp.CallToolResult, error) {
	operation, err := request.RequireString("operation")
	if err != nil {
		return mcp.NewToolResultError("operation argument is required and must be a string"), nil
	}
	if !allowed(operation) {
		return mcp.NewToolResultError(fmt.Sprintf("%q is not a %s operation", operation, family)), nil
	}

	req := &dispatch.Request{
		Operation:   operation,
		TokenBudget: request.GetInt("token_budget", 0),
	}
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		if raw, exists := args["params"]; exists {
			if m, ok := raw.(map[string]any); ok {
				req.Params = m
			}
		}
	}

	resp, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(errorPayload(err)), nil
	}

	responseJSON, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// errorPayload renders a dispatch error as JSON so callers can branch on
// the error kind instead of parsing prose.
func errorPayload(err error) string {
	payload := map[string]string{
		"error": err.Error(),
		"kind":  string(narraerr.KindOf(err)),
	}
	if hint := narraerr.HintOf(err); hint != "" {
		payload["entity_hint"] = hint
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return err.Error()
	}
	return string(data)
}

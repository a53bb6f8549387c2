package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func (s *MCPServer) handleGetStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	status, err := s.api.GetStatus(ctx)
	if err != nil {
		return textError("failed to get status: " + err.Error()), nil
	}
	return textJSON(status)
}

func (s *MCPServer) handleListHooks(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	hooks, err := s.api.GetHooks(ctx, req.GetString("event", ""))
	if err != nil {
		return textError("failed to list hooks: " + err.Error()), nil
	}
	return textJSON(hooks.Hooks)
}

func (s *MCPServer) handleListContent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	content, err := s.api.GetContent(ctx)
	if err != nil {
		return textError("failed to list content types: " + err.Error()), nil
	}
	return textJSON(content.PostTypes)
}

func (s *MCPServer) handleListScripts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	scripts, err := s.api.GetScripts(ctx)
	if err != nil {
		return textError("failed to list scripts: " + err.Error()), nil
	}
	return textJSON(scripts.Scripts)
}

func (s *MCPServer) handleRenderPhase(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	phase, err := req.RequireString("phase")
	if err != nil {
		return textError("missing required parameter: phase"), nil
	}
	resp, err := s.api.Render(ctx, protocol.RenderRequest{
		Phase:  phase,
		PostID: int64(req.GetInt("post_id", 0)),
		Source: "mcp",
	})
	if err != nil {
		return textError("failed to render: " + err.Error()), nil
	}
	if resp.Error != "" {
		return textError("render " + phase + ": " + resp.Error), nil
	}
	return textResult(resp.HTML), nil
}

func (s *MCPServer) handleSetPluginActive(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	active, err := req.RequireBool("active")
	if err != nil {
		return textError("missing required parameter: active"), nil
	}
	plugin := req.GetString("plugin", "flux-dna")
	resp, err := s.api.SetActive(ctx, plugin, active)
	if err != nil {
		return textError("failed to change plugin state: " + err.Error()), nil
	}
	return textJSON(resp)
}

// textResult returns a successful text result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

// textError returns an error text result.
func textError(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// textJSON marshals v to indented JSON and returns it as a text result.
func textJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textError("failed to marshal response: " + err.Error()), nil
	}
	return textResult(string(data)), nil
}

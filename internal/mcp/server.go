// Package mcp exposes the fluxdnad control API to AI assistants as MCP
// tools served on stdio.
package mcp

import (
	"context"
	"log"
	"os"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// MCPServer serves the fluxdna tools.
type MCPServer struct {
	api     DaemonAPI
	version string
	logger  zerolog.Logger
}

// New creates an MCPServer. Call Run to start serving on stdio.
func New(cfg Config, version string, logger zerolog.Logger) *MCPServer {
	return &MCPServer{
		api:     NewAPIClient(cfg.Daemon.Socket),
		version: version,
		logger:  logger.With().Str("component", "mcp").Logger(),
	}
}

// SetDaemonAPI overrides the daemon API client.
func (s *MCPServer) SetDaemonAPI(api DaemonAPI) {
	s.api = api
}

// Run registers the tools and serves on stdio until stdin closes or ctx is
// cancelled.
func (s *MCPServer) Run(ctx context.Context) error {
	srv := mcpserver.NewMCPServer(
		"fluxdna",
		s.version,
		mcpserver.WithRecovery(),
	)
	s.registerTools(srv)

	stdio := mcpserver.NewStdioServer(srv)
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))

	s.logger.Info().Msg("MCP server starting on stdio")
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *MCPServer) registerTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcplib.NewTool("get_status",
			mcplib.WithDescription("Get fluxdnad status: plugin version, activation state, uptime, hook and script counts"),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetStatus,
	)

	srv.AddTool(
		mcplib.NewTool("list_hooks",
			mcplib.WithDescription("List installed actions and filters in dispatch order, with priority and arity"),
			mcplib.WithString("event", mcplib.Description("Only list bindings for this event (e.g. \"wp_head\", \"init\")")),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleListHooks,
	)

	srv.AddTool(
		mcplib.NewTool("list_content_types",
			mcplib.WithDescription("List the registered post types with their slugs and taxonomies"),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleListContent,
	)

	srv.AddTool(
		mcplib.NewTool("list_scripts",
			mcplib.WithDescription("List loaded Lua extension scripts with their bound events, call and error counts"),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleListScripts,
	)

	srv.AddTool(
		mcplib.NewTool("render_phase",
			mcplib.WithDescription("Render a page phase and return its HTML"),
			mcplib.WithString("phase", mcplib.Required(), mcplib.Enum("head", "body_open", "admin_head"), mcplib.Description("Page phase to render")),
			mcplib.WithNumber("post_id", mcplib.Description("Current post id")),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleRenderPhase,
	)

	srv.AddTool(
		mcplib.NewTool("set_plugin_active",
			mcplib.WithDescription("Activate or deactivate a plugin, firing its lifecycle hook"),
			mcplib.WithString("plugin", mcplib.Description("Plugin name (default \"flux-dna\")")),
			mcplib.WithBoolean("active", mcplib.Required(), mcplib.Description("true to activate, false to deactivate")),
		),
		s.handleSetPluginActive,
	)
}

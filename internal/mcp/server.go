// Package mcp exposes the command catalog as MCP tools over stdio.
package mcp

import (
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

func categoryNames() []string {
	names := make([]string, len(command.Categories))
	for i, c := range command.Categories {
		names[i] = string(c)
	}
	return names
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"command_search": {
		def: mcp.NewTool("command_search",
			mcp.WithDescription("Search the command catalog by substring of name or description, optionally filtered by category or tag. Results are ordered by command name."),
			mcp.WithString("query", mcp.Description("Case-insensitive substring of the command name or description")),
			mcp.WithString("category", mcp.Description("Restrict to one category"), mcp.Enum(categoryNames()...)),
			mcp.WithString("tag", mcp.Description("Restrict to commands carrying this tag")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 100, max 500); truncated is true when more matched")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"command_get": {
		def: mcp.NewTool("command_get",
			mcp.WithDescription("Fetch one command with its examples and tags."),
			mcp.WithString("command", mcp.Required(), mcp.Description("Command name, e.g. nmap")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"command_upload": {
		def: mcp.NewTool("command_upload",
			mcp.WithDescription(`Import commands from a document. JSON arrays of {command|comando|herramienta, description|descripcion} objects, text lines like "nmap - network scanner", and HTML lists are accepted.`),
			mcp.WithString("content", mcp.Required(), mcp.Description("Document body")),
			mcp.WithString("filename", mcp.Description("Original file name; .json and .html select the parser")),
			mcp.WithString("format", mcp.Description("Format hint"), mcp.Enum("json", "text", "html")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpload },
	},
	"command_sync": {
		def: mcp.NewTool("command_sync",
			mcp.WithDescription("Ask the configured notebook for every command in its sources and merge them into the catalog. Falls back to the built-in catalog when the notebook returns nothing usable."),
			mcp.WithOpenWorldHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSync },
	},
}

// AllToolNames returns every registered tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the catalog tools registered.
// Tools listed in cfg.DisabledTools are skipped; unknown names are logged.
func NewServer(deps Deps, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lsearch",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		h.logger.Warn("unknown tool in disabled_tools", "tool", name)
	}

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the catalog tools on stdin/stdout until stdin closes.
func Run(deps Deps, cfg *config.Config, version string) error {
	s := NewServer(deps, cfg, version)
	if deps.Logger != nil {
		deps.Logger.Info("mcp server listening on stdio", slog.Int("tools", len(s.ListTools())))
	}
	return server.ServeStdio(s)
}

package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/folio/internal/gallery"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"gallery_state": {
		def:     stateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleState },
	},
	"gallery_open": {
		def:     openToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOpen },
	},
	"gallery_set_text": {
		def:     setTextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetText },
	},
	"gallery_set_image": {
		def:     setImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetImage },
	},
	"gallery_remove_image": {
		def:     removeImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemoveImage },
	},
	"gallery_set_audio": {
		def:     setAudioToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetAudio },
	},
	"gallery_clear_audio": {
		def:     clearAudioToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClearAudio },
	},
	"gallery_save": {
		def:     saveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
	"gallery_cancel": {
		def:     cancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCancel },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
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

// NewServer creates a new MCP server with the gallery tools registered.
// Tools listed in the host config's DisabledTools are excluded.
func NewServer(host *gallery.Host, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(host)

	disabled := make(map[string]bool)
	for _, name := range host.Config().DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the MCP tools over stdio until stdin closes.
func Run(host *gallery.Host, version string) error {
	s := NewServer(host, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

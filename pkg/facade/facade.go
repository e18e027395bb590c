// Package facade exposes the aggregator's entire tool surface as exactly
// two MCP tools, search_tools and call_tool, wiring together the registry,
// search engine, and dispatcher behind github.com/mark3labs/mcp-go/server.
package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fussraider/tool-search-tools-mcp/pkg/dispatch"
	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
	"github.com/fussraider/tool-search-tools-mcp/pkg/search"
)

const (
	serverName    = "tool-search-tools-mcp"
	serverVersion = "1.0.0"
)

// searchEngine is the narrow surface the facade needs from pkg/search.
type searchEngine interface {
	SearchTools(ctx context.Context, query string, limit int) ([]*registry.Record, error)
}

// Facade owns the downstream MCP server and the wiring between the
// registry, search engine, and dispatcher.
type Facade struct {
	mcp        *mcpserver.MCPServer
	registry   *registry.Registry
	search     searchEngine
	dispatcher *dispatch.Dispatcher
}

// New wires a facade around an already-populated registry and search
// engine. Callers are expected to have connected upstream servers and
// loaded skills before calling Serve.
func New(reg *registry.Registry, searchEngine searchEngine) *Facade {
	f := &Facade{
		mcp:        mcpserver.NewMCPServer(serverName, serverVersion, mcpserver.WithToolCapabilities(true), mcpserver.WithRecovery()),
		registry:   reg,
		search:     searchEngine,
		dispatcher: dispatch.New(),
	}
	f.registerTools()
	return f
}

func (f *Facade) registerTools() {
	searchTool := mcp.NewTool("search_tools",
		mcp.WithDescription("Search the aggregated tool catalogue for tools relevant to a natural-language query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language description of the capability you need."),
		),
	)
	f.mcp.AddTool(searchTool, f.handleSearchTools)

	callTool := mcp.NewTool("call_tool",
		mcp.WithDescription("Invoke a tool previously returned by search_tools."),
		mcp.WithString("server",
			mcp.Required(),
			mcp.Description("The server field from the search_tools result."),
		),
		mcp.WithString("toolName",
			mcp.Required(),
			mcp.Description("The name field from the search_tools result."),
		),
		mcp.WithObject("arguments",
			mcp.Description("Arguments to pass to the tool, per its inputSchema."),
		),
	)
	f.mcp.AddTool(callTool, f.handleCallTool)
}

type searchResultEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Server      string         `json:"server"`
	InputSchema map[string]any `json:"inputSchema"`
}

// handleSearchTools implements §4.8's search_tools: a JSON array of
// matches plus boilerplate advising query refinement.
func (f *Facade) handleSearchTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing required parameter 'query': %v", err)), nil
	}

	records, err := f.search.SearchTools(ctx, query, search.DefaultLimit)
	if err != nil {
		logger.Errorw("facade: search_tools failed", "query", query, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	entries := make([]searchResultEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, searchResultEntry{
			Name:        rec.Name,
			Description: rec.Description,
			Server:      rec.Server,
			InputSchema: rec.Schema,
		})
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}

	text := fmt.Sprintf(
		"%s\n\nIf none of these fit, refine your query: try a more specific or differently-worded one.",
		string(payload),
	)
	return mcp.NewToolResultText(text), nil
}

// handleCallTool implements §4.8's call_tool: resolve by (server, name),
// dispatch, and surface failures as isError results rather than
// transport-level errors.
func (f *Facade) handleCallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()

	server, err := request.RequireString("server")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing required parameter 'server': %v", err)), nil
	}
	toolName, err := request.RequireString("toolName")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing required parameter 'toolName': %v", err)), nil
	}
	arguments := request.GetArguments()
	var toolArgs map[string]any
	if raw, ok := arguments["arguments"]; ok {
		if m, ok := raw.(map[string]any); ok {
			toolArgs = m
		}
	}
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	logger.Infow("facade: call_tool", "request_id", requestID, "server", server, "tool", toolName)

	tool, ok := f.registry.GetTool(server, toolName)
	if !ok {
		logger.Warnw("facade: call_tool tool not found", "request_id", requestID, "server", server, "tool", toolName)
		return mcp.NewToolResultError(fmt.Sprintf("tool not found: %s/%s", server, toolName)), nil
	}

	result, err := f.dispatcher.ExecuteTool(ctx, tool, toolArgs, f.registry)
	if err != nil {
		logger.Errorw("facade: call_tool execution failed", "request_id", requestID, "server", server, "tool", toolName, "error", err.Error())
		return mcp.NewToolResultError(err.Error()), nil
	}

	if mcpResult, ok := result.(*mcp.CallToolResult); ok {
		return mcpResult, nil
	}

	// Skills return their last step's raw result; when that step was not
	// an upstream call it may be a bare string or an arbitrary JSON-shaped
	// value, so re-encode it into a text content block so the transport
	// sees a uniform shape.
	return resultToToolResult(result)
}

func resultToToolResult(result any) (*mcp.CallToolResult, error) {
	if s, ok := result.(string); ok {
		return mcp.NewToolResultText(s), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Serve binds the facade to the standard-stream server transport and
// blocks until the client disconnects or the process is signalled.
func (f *Facade) Serve() error {
	return mcpserver.ServeStdio(f.mcp)
}

// Package upstream wraps a single upstream MCP server reached over a child
// process's standard streams: it speaks tools/list and tools/call on the
// client side of github.com/mark3labs/mcp-go and forwards the child's
// stderr into the aggregator's own log.
package upstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
)

// Tool is the shape of one entry from an upstream's tools/list response
// that the registry cares about.
type Tool struct {
	Name        string
	Description string
	InputSchema mcp.ToolInputSchema
}

// CallResult is the raw tools/call response, passed through to the caller
// verbatim.
type CallResult = mcp.CallToolResult

// Client is a live connection to one upstream MCP server.
type Client struct {
	serverName string
	inner      *client.Client
}

// Connect spawns command with args and env (merged over the current
// process's environment) and performs the MCP initialize handshake. The
// child's stderr is forwarded to the aggregator's log at debug level, one
// line at a time, by forwardStderr.
func Connect(ctx context.Context, serverName, command string, args []string, env map[string]string) (*Client, error) {
	mergedEnv := os.Environ()
	for k, v := range env {
		mergedEnv = append(mergedEnv, fmt.Sprintf("%s=%s", k, v))
	}

	c, err := client.NewStdioMCPClient(command, mergedEnv, args...)
	if err != nil {
		return nil, fmt.Errorf("upstream: spawn %s: %w", serverName, err)
	}

	if stdio, ok := c.GetTransport().(*transport.Stdio); ok {
		go forwardStderr(serverName, stdio.Stderr())
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "tool-search-tools-mcp",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("upstream: initialize %s: %w", serverName, err)
	}

	return &Client{serverName: serverName, inner: c}, nil
}

// forwardStderr copies an upstream child's stderr into the aggregator log,
// one line at a time, at debug level.
func forwardStderr(serverName string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		logger.Debugw("upstream: child stderr", "server", serverName, "line", line)
	}
}

// ListTools enumerates the upstream's advertised tools.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("upstream: list tools on %s: %w", c.serverName, err)
	}
	out := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out, nil
}

// CallTool invokes name on the upstream with arguments, returning the raw
// result unchanged.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	result, err := c.inner.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upstream: call %s on %s: %w", name, c.serverName, err)
	}
	return result, nil
}

// Close terminates the child process and releases transport resources.
func (c *Client) Close() error {
	return c.inner.Close()
}

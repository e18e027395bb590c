package facade

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
	"github.com/fussraider/tool-search-tools-mcp/pkg/upstream"
)

type fakeUpstreamClient struct {
	tools   []upstream.Tool
	lastArg map[string]any
	err     error
}

func (f *fakeUpstreamClient) ListTools(context.Context) ([]upstream.Tool, error) {
	return f.tools, nil
}

func (f *fakeUpstreamClient) CallTool(_ context.Context, _ string, args map[string]any) (*upstream.CallResult, error) {
	f.lastArg = args
	if f.err != nil {
		return nil, f.err
	}
	return &mcp.CallToolResult{}, nil
}

func (f *fakeUpstreamClient) Close() error { return nil }

type fakeSearchEngine struct {
	records []*registry.Record
	err     error
}

func (f *fakeSearchEngine) SearchTools(context.Context, string, int) ([]*registry.Record, error) {
	return f.records, f.err
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleSearchTools_MissingQuery(t *testing.T) {
	reg := registry.New(nil, nil, false)
	f := New(reg, &fakeSearchEngine{})

	result, err := f.handleSearchTools(context.Background(), newRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSearchTools_ReturnsEncodedMatches(t *testing.T) {
	reg := registry.New(nil, nil, false)
	engine := &fakeSearchEngine{records: []*registry.Record{
		{Server: "srv", Name: "calculate_sum", Description: "adds numbers", Schema: map[string]any{"type": "object"}},
	}}
	f := New(reg, engine)

	result, err := f.handleSearchTools(context.Background(), newRequest(map[string]any{"query": "sum"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "calculate_sum")
	assert.Contains(t, text.Text, "refine")
}

func TestHandleSearchTools_SearchFailure(t *testing.T) {
	reg := registry.New(nil, nil, false)
	f := New(reg, &fakeSearchEngine{err: assertErr("index down")})

	result, err := f.handleSearchTools(context.Background(), newRequest(map[string]any{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCallTool_MissingParams(t *testing.T) {
	reg := registry.New(nil, nil, false)
	f := New(reg, &fakeSearchEngine{})

	result, err := f.handleCallTool(context.Background(), newRequest(map[string]any{"toolName": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCallTool_ToolNotFound(t *testing.T) {
	reg := registry.New(nil, nil, false)
	f := New(reg, &fakeSearchEngine{})

	result, err := f.handleCallTool(context.Background(), newRequest(map[string]any{
		"server": "srv", "toolName": "missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text, _ := result.Content[0].(mcp.TextContent)
	assert.Contains(t, text.Text, "not found")
}

func TestHandleCallTool_DispatchesToUpstream(t *testing.T) {
	reg := registry.New(nil, nil, false)
	client := &fakeUpstreamClient{tools: []upstream.Tool{{Name: "echo"}}}
	require.NoError(t, reg.RegisterToolsFromClient(context.Background(), "srv", client, ""))
	f := New(reg, &fakeSearchEngine{})

	result, err := f.handleCallTool(context.Background(), newRequest(map[string]any{
		"server": "srv", "toolName": "echo", "arguments": map[string]any{"x": 1},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, map[string]any{"x": 1}, client.lastArg)
}

func TestHandleCallTool_UpstreamFailureIsErrorResult(t *testing.T) {
	reg := registry.New(nil, nil, false)
	client := &fakeUpstreamClient{tools: []upstream.Tool{{Name: "boom"}}, err: assertErr("upstream exploded")}
	require.NoError(t, reg.RegisterToolsFromClient(context.Background(), "srv", client, ""))
	f := New(reg, &fakeSearchEngine{})

	result, err := f.handleCallTool(context.Background(), newRequest(map[string]any{
		"server": "srv", "toolName": "boom",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestResultToToolResult_StringPassthrough(t *testing.T) {
	result, err := resultToToolResult("hello")
	require.NoError(t, err)
	text, _ := result.Content[0].(mcp.TextContent)
	assert.Equal(t, "hello", text.Text)
}

func TestResultToToolResult_JSONEncodesOther(t *testing.T) {
	result, err := resultToToolResult(map[string]any{"a": 1})
	require.NoError(t, err)
	text, _ := result.Content[0].(mcp.TextContent)
	assert.Contains(t, text.Text, `"a"`)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

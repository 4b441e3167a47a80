package mcpproc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stdioHelperEnv gates runStdioHelper so the test binary only behaves as an
// MCP server child process when re-exec'd with it set; a normal `go test`
// invocation skips TestStdioHelper like any other test.
const stdioHelperEnv = "AGENTUSE_MCPPROC_STDIO_HELPER"

// launchHelper starts the test binary itself as the MCP server child,
// mirroring the teacher's runtime/mcp self-re-exec trick: os.Args[0] is the
// compiled test binary, -test.run restricts it to TestStdioHelper, and the
// env var tells that invocation to run the helper loop instead of skipping.
func launchHelper(t *testing.T, ctx context.Context) *Caller {
	t.Helper()
	caller, err := Launch(ctx, Options{
		Name:        "helper",
		Command:     os.Args[0],
		Args:        []string{"-test.run=TestStdioHelper", "--"},
		Env:         map[string]string{stdioHelperEnv: "1"},
		InitTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return caller
}

func TestStdioCallerCallTool(t *testing.T) {
	ctx := context.Background()
	caller := launchHelper(t, ctx)
	defer func() { _ = caller.Close() }()

	result, err := caller.CallTool(ctx, "echo", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "hi", result.Text)
}

func TestStdioCallerCallToolError(t *testing.T) {
	ctx := context.Background()
	caller := launchHelper(t, ctx)
	defer func() { _ = caller.Close() }()

	result, err := caller.CallTool(ctx, "fail", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, "boom", result.Text)
}

func TestStdioCallerListTools(t *testing.T) {
	ctx := context.Background()
	caller := launchHelper(t, ctx)
	defer func() { _ = caller.Close() }()

	tools, err := caller.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "echo", tools[0].Name)
}

func TestStdioCallerCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	caller := launchHelper(t, ctx)
	require.NoError(t, caller.Close())
	require.NoError(t, caller.Close())
}

func TestStdioCallerCallToolAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	caller := launchHelper(t, ctx)
	require.NoError(t, caller.Close())

	_, err := caller.CallTool(ctx, "echo", json.RawMessage(`{"text":"hi"}`))
	require.Error(t, err)
}

// TestStdioHelper is not a real test: it is the re-exec'd child process body.
// Run normally (no AGENTUSE_MCPPROC_STDIO_HELPER set) it just skips.
func TestStdioHelper(t *testing.T) {
	if os.Getenv(stdioHelperEnv) != "1" {
		t.Skip("helper process")
	}
	runStdioHelper()
}

func runStdioHelper() {
	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			break
		}
		var req rpcRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			continue
		}
		switch req.Method {
		case "initialize":
			writeFrame(writer, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"capabilities":{}}`)})
		case "tools/list":
			result := toolsListResult{Tools: []ToolSpec{{Name: "echo", Description: "echoes its text argument"}}}
			data, _ := json.Marshal(result)
			writeFrame(writer, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: data})
		case "tools/call":
			handleHelperToolCall(writer, req)
		default:
			writeFrame(writer, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "unknown method"}})
		}
	}
	_ = writer.Flush()
	os.Exit(0)
}

func handleHelperToolCall(writer *bufio.Writer, req rpcRequest) {
	params, _ := req.Params.(map[string]any)
	name, _ := params["name"].(string)
	switch name {
	case "echo":
		// arguments round-trips through the generic map[string]any decode
		// above, so re-marshal it before decoding into a concrete struct.
		raw, _ := json.Marshal(params["arguments"])
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(raw, &payload)
		text := payload.Text
		result := toolsCallResult{Content: []contentItem{{Type: "text", Text: &text}}}
		data, _ := json.Marshal(result)
		writeFrame(writer, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: data})
	case "fail":
		text := "boom"
		result := toolsCallResult{Content: []contentItem{{Type: "text", Text: &text}}, IsError: true}
		data, _ := json.Marshal(result)
		writeFrame(writer, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: data})
	default:
		writeFrame(writer, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "unknown tool"}})
	}
}

func writeFrame(writer *bufio.Writer, resp rpcResponse) {
	data, _ := json.Marshal(resp)
	_, _ = fmt.Fprintf(writer, "Content-Length: %d\r\n\r\n", len(data))
	_, _ = writer.Write(data)
	_ = writer.Flush()
}

package notebook

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeProcess connects the client to an in-process fake over io.Pipe.
type pipeProcess struct {
	stdin  *io.PipeWriter
	stdout *io.PipeReader
	stop   func()

	once   sync.Once
	killed atomic.Bool
}

func (p *pipeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *pipeProcess) Stdout() io.Reader      { return p.stdout }

func (p *pipeProcess) Kill() error {
	p.once.Do(func() {
		p.killed.Store(true)
		p.stop()
	})
	return nil
}

// stdioServerLauncher serves each launch with a real MCP stdio server.
type stdioServerLauncher struct {
	srv *server.MCPServer
}

func (l *stdioServerLauncher) Launch(ctx context.Context) (Process, error) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	runCtx, cancel := context.WithCancel(context.Background())

	stdio := server.NewStdioServer(l.srv)
	stdio.SetErrorLogger(log.New(io.Discard, "", 0))
	go func() {
		_ = stdio.Listen(runCtx, inR, outW)
		outW.Close()
	}()

	return &pipeProcess{
		stdin:  inW,
		stdout: outR,
		stop: func() {
			cancel()
			inW.Close()
			inR.Close()
			outR.Close()
		},
	}, nil
}

// scriptedLauncher runs a hand-written fake that reads requests from in
// and writes raw lines to out.
type scriptedLauncher struct {
	script func(in *bufio.Scanner, out io.Writer)
	last   *pipeProcess
}

func (l *scriptedLauncher) Launch(ctx context.Context) (Process, error) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	go func() {
		l.script(bufio.NewScanner(inR), outW)
		outW.Close()
		inR.Close()
	}()

	p := &pipeProcess{
		stdin:  inW,
		stdout: outR,
		stop: func() {
			inW.Close()
			outR.Close()
		},
	}
	l.last = p
	return p, nil
}

func newFakeNotebook(handler server.ToolHandlerFunc) *server.MCPServer {
	s := server.NewMCPServer("fake-notebook", "0.0.1", server.WithToolCapabilities(true))
	s.AddTool(mcp.NewTool(ToolName,
		mcp.WithDescription("Ask a notebook a question"),
		mcp.WithString("notebook_id", mcp.Required()),
		mcp.WithString("query", mcp.Required()),
	), handler)
	return s
}

func fastOptions() Options {
	return Options{Timeout: 5 * time.Second, CallDelay: time.Millisecond}
}

func TestQuery_StructuredAnswer(t *testing.T) {
	var gotNotebook, gotQuery string
	srv := newFakeNotebook(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		gotNotebook = req.GetString("notebook_id", "")
		gotQuery = req.GetString("query", "")
		answer := "* **ls**: Lista archivos del directorio"
		return &mcp.CallToolResult{
			Content:           []mcp.Content{mcp.NewTextContent("see structured content")},
			StructuredContent: map[string]any{"answer": answer},
		}, nil
	})

	client := NewClient(&stdioServerLauncher{srv: srv}, fastOptions())
	answer, err := client.Query(context.Background(), "nb-123", "List commands")
	require.NoError(t, err)

	assert.Equal(t, "* **ls**: Lista archivos del directorio", answer.Text)
	assert.Equal(t, "nb-123", gotNotebook)
	assert.Equal(t, "List commands", gotQuery)
	assert.True(t, json.Valid(answer.Result))
}

func TestQuery_TextFallback(t *testing.T) {
	srv := newFakeNotebook(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("plain answer text"), nil
	})

	client := NewClient(&stdioServerLauncher{srv: srv}, fastOptions())
	answer, err := client.Query(context.Background(), "nb", "q")
	require.NoError(t, err)
	assert.Equal(t, "plain answer text", answer.Text)
}

func TestQuery_ToolError(t *testing.T) {
	srv := newFakeNotebook(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("notebook not found"), nil
	})

	client := NewClient(&stdioServerLauncher{srv: srv}, fastOptions())
	_, err := client.Query(context.Background(), "nb", "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolFailed))
	assert.Contains(t, err.Error(), "notebook not found")
}

func TestQuery_HandshakeOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
		initMsg map[string]any
	)

	launcher := &scriptedLauncher{script: func(in *bufio.Scanner, out io.Writer) {
		io.WriteString(out, "notebooklm-mcp v1 starting\n")
		for in.Scan() {
			var msg map[string]any
			if err := json.Unmarshal(in.Bytes(), &msg); err != nil {
				continue
			}
			mu.Lock()
			methods = append(methods, msg["method"].(string))
			mu.Unlock()

			switch msg["method"] {
			case "initialize":
				mu.Lock()
				initMsg = msg
				mu.Unlock()
				io.WriteString(out, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{}}}`+"\n")
			case "tools/call":
				io.WriteString(out, "log: running query\n")
				io.WriteString(out, `{"jsonrpc":"2.0","id":2,"result":{"content":[],"structuredContent":{"answer":"done"}}}`+"\n")
			}
		}
	}}

	client := NewClient(launcher, fastOptions())
	answer, err := client.Query(context.Background(), "nb", "q")
	require.NoError(t, err)
	assert.Equal(t, "done", answer.Text)
	assert.True(t, launcher.last.killed.Load(), "process must be killed after the answer")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"initialize", "notifications/initialized", "tools/call"}, methods)

	params := initMsg["params"].(map[string]any)
	assert.Equal(t, ProtocolVersion, params["protocolVersion"])
	clientInfo := params["clientInfo"].(map[string]any)
	assert.Equal(t, "lsearch", clientInfo["name"])
	assert.Equal(t, "1.0", clientInfo["version"])
	assert.EqualValues(t, 1, initMsg["id"])
}

func TestQuery_RPCError(t *testing.T) {
	launcher := &scriptedLauncher{script: func(in *bufio.Scanner, out io.Writer) {
		for in.Scan() {
			var msg map[string]any
			if err := json.Unmarshal(in.Bytes(), &msg); err != nil {
				continue
			}
			switch msg["method"] {
			case "initialize":
				io.WriteString(out, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{}}}`+"\n")
			case "tools/call":
				io.WriteString(out, `{"jsonrpc":"2.0","id":2,"error":{"code":-32000,"message":"quota exceeded"}}`+"\n")
			}
		}
	}}

	client := NewClient(launcher, fastOptions())
	_, err := client.Query(context.Background(), "nb", "q")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "quota exceeded")
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, launcher.last.killed.Load())
}

func TestQuery_ExitBeforeAnswer(t *testing.T) {
	launcher := &scriptedLauncher{script: func(in *bufio.Scanner, out io.Writer) {
		io.WriteString(out, "not json at all\n")
		in.Scan()
		io.WriteString(out, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{}}}`+"\n")
		in.Scan()
	}}

	// A long call delay keeps the tool call from racing the exit.
	client := NewClient(launcher, Options{Timeout: 5 * time.Second, CallDelay: time.Hour})
	_, err := client.Query(context.Background(), "nb", "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessExited), "got %v", err)
}

func TestQuery_ExitDuringToolCall(t *testing.T) {
	launcher := &scriptedLauncher{script: func(in *bufio.Scanner, out io.Writer) {
		for in.Scan() {
			var msg map[string]any
			if err := json.Unmarshal(in.Bytes(), &msg); err != nil {
				continue
			}
			switch msg["method"] {
			case "initialize":
				io.WriteString(out, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{}}}`+"\n")
			case "tools/call":
				return
			}
		}
	}}

	client := NewClient(launcher, Options{Timeout: 30 * time.Second, CallDelay: time.Millisecond})
	start := time.Now()
	_, err := client.Query(context.Background(), "nb", "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessExited), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestQuery_Timeout(t *testing.T) {
	launcher := &scriptedLauncher{script: func(in *bufio.Scanner, out io.Writer) {
		for in.Scan() {
		}
	}}

	client := NewClient(launcher, Options{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Query(context.Background(), "nb", "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, launcher.last.killed.Load(), "process must be killed on timeout")
}

func TestQuery_LaunchError(t *testing.T) {
	client := NewClient(ExecLauncher{}, fastOptions())
	_, err := client.Query(context.Background(), "nb", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestAnswerFrom(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		want    string
		wantErr bool
	}{
		{
			name:   "structured wins",
			result: `{"content":[{"type":"text","text":"text"}],"structuredContent":{"answer":"structured"}}`,
			want:   "structured",
		},
		{
			name:   "joined text",
			result: `{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
			want:   "a\nb",
		},
		{
			name:   "structured without answer field",
			result: `{"content":[{"type":"text","text":"fallback"}],"structuredContent":{"other":1}}`,
			want:   "fallback",
		},
		{
			name:   "empty answer",
			result: `{"content":[]}`,
			want:   "",
		},
		{
			name:    "is error",
			result:  `{"content":[{"type":"text","text":"boom"}],"isError":true}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := json.RawMessage(tt.result)
			res, err := mcp.ParseCallToolResult(&raw)
			require.NoError(t, err)

			got, err := answerFrom(res)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrToolFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
			assert.True(t, json.Valid(got.Result))
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUninitialized, StateInitializing, true},
		{StateInitializing, StateReady, true},
		{StateReady, StateAwaitingResponse, true},
		{StateAwaitingResponse, StateDone, true},
		{StateInitializing, StateFailed, true},
		{StateAwaitingResponse, StateFailed, true},
		{StateUninitialized, StateReady, false},
		{StateReady, StateDone, false},
		{StateDone, StateFailed, false},
		{StateFailed, StateInitializing, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, canTransition(tt.from, tt.to))
		})
	}
}

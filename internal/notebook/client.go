// Package notebook queries an external notebook tool that speaks MCP over
// stdio. Each query launches a fresh process, performs the initialize
// handshake, issues a single tool call and kills the process.
package notebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Protocol constants for the handshake.
const (
	ProtocolVersion = "2024-11-05"
	ToolName        = "notebook_query"

	// exitGrace bounds the wait for a response already read when stdout closes
	exitGrace = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when the query deadline passes first.
	ErrTimeout = errors.New("notebook query timed out")

	// ErrProcessExited is returned when stdout closes before the tool call is answered.
	ErrProcessExited = errors.New("notebook tool exited before responding")

	// ErrToolFailed is returned when the tool reports isError.
	ErrToolFailed = errors.New("notebook tool returned an error")
)

// Answer is the outcome of a successful query.
type Answer struct {
	// Text is structuredContent.answer, or the joined text content
	Text string

	// Result is the tools/call result object as JSON
	Result json.RawMessage
}

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Timeout    time.Duration
	CallDelay  time.Duration
	ClientName string
	Version    string
	Logger     *slog.Logger
}

// Client runs notebook queries through a Launcher.
type Client struct {
	launcher Launcher
	opts     Options
}

// NewClient returns a Client with defaults applied to opts.
func NewClient(launcher Launcher, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.CallDelay < 0 {
		opts.CallDelay = 0
	}
	if opts.ClientName == "" {
		opts.ClientName = "lsearch"
	}
	if opts.Version == "" {
		opts.Version = "1.0"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{launcher: launcher, opts: opts}
}

// Query asks the notebook a question and returns its answer.
// The whole exchange, process start included, is bounded by the timeout.
func (c *Client) Query(ctx context.Context, notebookID, question string) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	proc, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch notebook tool: %w", err)
	}
	defer proc.Kill()

	stdout := &exitReader{r: proc.Stdout(), exited: make(chan struct{})}
	rpc := mcpclient.NewClient(transport.NewIO(stdout, proc.Stdin(), nil))
	defer rpc.Close()

	s := &session{
		client: c,
		rpc:    rpc,
		exited: stdout.exited,
		logger: c.opts.Logger.With("notebook_id", notebookID),
	}
	return s.run(ctx, map[string]any{"notebook_id": notebookID, "query": question})
}

// exitReader closes exited once the process stdout fails or ends.
// Every read error is reported as io.EOF so the transport stops quietly.
type exitReader struct {
	r      io.Reader
	exited chan struct{}
	once   sync.Once
}

func (e *exitReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil {
		e.once.Do(func() { close(e.exited) })
		return n, io.EOF
	}
	return n, nil
}

// session drives a single query through the handshake states.
type session struct {
	client *Client
	rpc    *mcpclient.Client
	exited <-chan struct{}
	logger *slog.Logger
	state  State
}

func (s *session) transition(to State) error {
	if !canTransition(s.state, to) {
		return fmt.Errorf("illegal notebook state transition %s -> %s", s.state, to)
	}
	s.logger.Debug("notebook state", "from", s.state.String(), "to", to.String())
	s.state = to
	return nil
}

func (s *session) fail(err error) (*Answer, error) {
	_ = s.transition(StateFailed)
	return nil, err
}

func (s *session) run(ctx context.Context, args map[string]any) (*Answer, error) {
	if err := s.transition(StateInitializing); err != nil {
		return s.fail(err)
	}
	if err := s.rpc.Start(ctx); err != nil {
		return s.fail(fmt.Errorf("start transport: %w", err))
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = ProtocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    s.client.opts.ClientName,
		Version: s.client.opts.Version,
	}
	err := s.await(ctx, func(ctx context.Context) error {
		_, err := s.rpc.Initialize(ctx, initReq)
		return err
	})
	if err != nil {
		return s.fail(fmt.Errorf("initialize: %w", err))
	}
	if err := s.transition(StateReady); err != nil {
		return s.fail(err)
	}

	select {
	case <-time.After(s.client.opts.CallDelay):
	case <-s.exited:
		return s.fail(fmt.Errorf("%w (state %s)", ErrProcessExited, s.state))
	case <-ctx.Done():
		return s.fail(s.contextError(ctx, ctx.Err()))
	}

	if err := s.transition(StateAwaitingResponse); err != nil {
		return s.fail(err)
	}
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = ToolName
	callReq.Params.Arguments = args

	var result *mcp.CallToolResult
	err = s.await(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.rpc.CallTool(ctx, callReq)
		return err
	})
	if err != nil {
		return s.fail(fmt.Errorf("tools/call: %w", err))
	}

	answer, err := answerFrom(result)
	if err != nil {
		return s.fail(err)
	}
	if err := s.transition(StateDone); err != nil {
		return s.fail(err)
	}
	return answer, nil
}

// await runs one request, returning early when the process exits.
func (s *session) await(ctx context.Context, call func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- call(ctx) }()

	select {
	case err := <-done:
		return s.contextError(ctx, err)
	case <-s.exited:
		// A response read just before EOF is already queued.
		select {
		case err := <-done:
			return s.contextError(ctx, err)
		case <-time.After(exitGrace):
			return fmt.Errorf("%w (state %s)", ErrProcessExited, s.state)
		}
	}
}

// contextError maps a deadline to ErrTimeout and leaves other errors alone.
func (s *session) contextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (state %s)", ErrTimeout, s.client.opts.Timeout, s.state)
	}
	return err
}

// structuredAnswer is the structuredContent shape returned by notebook_query.
type structuredAnswer struct {
	Answer string `json:"answer"`
}

func answerFrom(res *mcp.CallToolResult) (*Answer, error) {
	if res == nil {
		return nil, fmt.Errorf("tools/call: empty result")
	}

	var texts []string
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, tc.Text)
		}
	}
	joined := strings.Join(texts, "\n")

	if res.IsError {
		if joined == "" {
			return nil, ErrToolFailed
		}
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, joined)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	answer := &Answer{Result: raw}

	if res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			var sa structuredAnswer
			if err := json.Unmarshal(data, &sa); err == nil {
				answer.Text = sa.Answer
			}
		}
	}
	if answer.Text == "" {
		answer.Text = joined
	}
	return answer, nil
}

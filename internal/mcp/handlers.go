package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lsearch/internal/errors"
	"github.com/hpungsan/lsearch/internal/ops"
)

// Deps are the collaborators the tool handlers need.
type Deps struct {
	Store  ops.Store
	Syncer *ops.Syncer
	Logger *slog.Logger
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store  ops.Store
	syncer *ops.Syncer
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: deps.Store, syncer: deps.Syncer, logger: logger}
}

// SearchRequest represents the arguments for command_search.
type SearchRequest struct {
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// GetRequest represents the arguments for command_get.
type GetRequest struct {
	Command string `json:"command"`
}

// UploadRequest represents the arguments for command_upload.
type UploadRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
	Format   string `json:"format,omitempty"`
}

// HandleSearch handles the command_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	limit := input.Limit
	if limit == 0 {
		limit = ops.DefaultSearchLimit
	}
	result, err := ops.Search(ctx, h.store, ops.SearchInput{
		Query:    input.Query,
		Category: input.Category,
		Tag:      input.Tag,
		Limit:    limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGet handles the command_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := ops.Get(ctx, h.store, input.Command)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleUpload handles the command_upload tool call.
func (h *Handlers) HandleUpload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Upload(ctx, h.store, h.logger, ops.UploadInput{
		Content:  input.Content,
		Filename: input.Filename,
		Format:   input.Format,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSync handles the command_sync tool call. A notebook failure is
// reported inside the result rather than as a tool error.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.syncer == nil {
		return errorResult(errors.NewNotebookFailed(fmt.Errorf("notebook client not configured"))), nil
	}

	result := h.syncer.Sync(ctx)
	if len(result.Errors) > ops.MaxDisplayErrors {
		result.Errors = result.Errors[:ops.MaxDisplayErrors]
	}
	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Internal error details are never exposed. A wrapped LsearchError keeps
// its code and the wrapper's message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var lErr *errors.LsearchError
	if stderrors.As(err, &lErr) {
		msg := lErr.Message
		if wrapped := err.Error(); wrapped != lErr.Error() {
			msg = strings.TrimSuffix(wrapped, lErr.Error()) + lErr.Message
		}
		errorObj := map[string]any{
			"code":    lErr.Code,
			"message": msg,
			"status":  lErr.Status,
		}
		if lErr.Code != errors.ErrInternal && lErr.Details != nil {
			errorObj["details"] = lErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

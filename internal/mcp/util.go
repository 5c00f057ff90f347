package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/narrativelab/dramatis/internal/knowledge"
)

// errorToMCP converts a store/façade error into a rejected-request
// result. Every taxonomy class becomes IsError text the client can
// read; nothing escalates to a protocol fault, and StorageError
// internals stay in the server log.
func errorToMCP(logger *slog.Logger, err error) *mcp.CallToolResult {
	var (
		vErr   *knowledge.ValidationError
		refErr *knowledge.ReferentialError
		dupErr *knowledge.DuplicateError
		stErr  *knowledge.StorageError
	)

	var text string
	switch {
	case errors.As(err, &vErr):
		text = fmt.Sprintf("[invalid_argument] %s", vErr)
	case errors.As(err, &refErr):
		text = fmt.Sprintf("[not_found] %s", refErr)
	case errors.As(err, &dupErr):
		text = fmt.Sprintf("[already_exists] %s", dupErr)
	case errors.As(err, &stErr):
		logger.Error("storage failure", "op", stErr.Op, "error", stErr.Err)
		text = "[unavailable] storage backend failed, try again"
	default:
		logger.Error("unexpected tool error", "error", err)
		text = "[internal] the operation failed, see server logs"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// dataToMCP marshals a payload to a JSON text result. All tool output
// is JSON; clients parse it.
func dataToMCP(data any) *mcp.CallToolResult {
	b, err := json.Marshal(data)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "marshal error"}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

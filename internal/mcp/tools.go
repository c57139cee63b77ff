package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another sync pass is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path := getStringDefault(args, "path", "")
	if path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	req := types.IndexRequest{
		Path:           path,
		IgnorePatterns: getStringSlice(args, "ignore_patterns"),
		SkipEmbeddings: getBoolDefault(args, "skip_embeddings", false),
	}
	if v, ok := args["include_directories"].(bool); ok {
		req.IncludeDirectories = &v
	}

	resp, err := s.app.IndexDirectory(ctx, req)
	if err != nil {
		return nil, s.toolError("indexing failed", err)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleSearchFiles handles the search_files tool invocation
func (s *Server) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	req := types.SearchRequest{
		Query:          getStringDefault(args, "query", ""),
		Directory:      getStringDefault(args, "directory", ""),
		Extensions:     getStringSlice(args, "extensions"),
		Type:           getStringDefault(args, "type", ""),
		MinSize:        getInt64Ptr(args, "min_size"),
		MaxSize:        getInt64Ptr(args, "max_size"),
		ModifiedAfter:  getStringDefault(args, "modified_after", ""),
		ModifiedBefore: getStringDefault(args, "modified_before", ""),
		Semantic:       getBoolDefault(args, "semantic", false),
		LLM:            getBoolDefault(args, "llm", false),
		Hard:           getBoolDefault(args, "hard", false),
		TopK:           getIntDefault(args, "top_k", 0),
	}
	if req.Directory != "" && !filepath.IsAbs(req.Directory) {
		return nil, newMCPError(ErrorCodeInvalidParams, "directory must be absolute", map[string]interface{}{
			"param": "directory",
			"value": req.Directory,
		})
	}
	if err := req.Validate(); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, types.ErrEmptyQuery) {
			code = ErrorCodeEmptyQuery
		}
		return nil, newMCPError(code, err.Error(), nil)
	}

	resp, err := s.app.SearchFiles(ctx, req)
	if err != nil {
		return nil, s.toolError("search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.app.Status(ctx)
	if err != nil {
		return nil, s.toolError("failed to get status", err)
	}
	return mcp.NewToolResultText(formatJSON(status)), nil
}

// handleIndexTree handles the index_tree tool invocation
func (s *Server) handleIndexTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	req := types.TreeRequest{
		Directory:  getStringDefault(args, "directory", ""),
		Extensions: getStringSlice(args, "extensions"),
		MaxEntries: getIntDefault(args, "max_entries", 0),
	}
	if v, ok := args["include_empty_dirs"].(bool); ok {
		req.IncludeEmptyDirs = &v
	}
	if req.Directory == "" || !filepath.IsAbs(req.Directory) {
		return nil, newMCPError(ErrorCodeInvalidParams, "directory must be an absolute path", map[string]interface{}{
			"param": "directory",
			"value": req.Directory,
		})
	}

	res, err := s.app.TreeFor(ctx, req)
	if err != nil {
		return nil, s.toolError("failed to render tree", err)
	}
	if len(res.Lines) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No indexed files under %s", res.Root)), nil
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// Helper functions

// toolError maps an application error onto an MCP error code
func (s *Server) toolError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, indexer.ErrSyncInProgress):
		code = ErrorCodeIndexingInProgress
	case apperrors.IsContract(err):
		code = ErrorCodeInvalidParams
	default:
		s.logger.Error(message, slog.String("error", err.Error()))
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getInt64Ptr(args map[string]interface{}, key string) *int64 {
	var v int64
	switch n := args[key].(type) {
	case float64:
		v = int64(n)
	case int:
		v = int64(n)
	case int64:
		v = n
	default:
		return nil
	}
	return &v
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice accepts a JSON array of strings or a single string
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)

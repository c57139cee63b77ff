package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDirectoryTool returns the tool definition for index_directory
func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Synchronize the file catalog with a directory tree and embed new or changed files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the directory to index",
				},
				"ignore_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns matched against base names; replaces the configured patterns",
					"items":       map[string]interface{}{"type": "string"},
				},
				"include_directories": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, catalog directories as well as files",
				},
				"skip_embeddings": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only update the catalog",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchFilesTool returns the tool definition for search_files
func searchFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_files",
		Description: "Find cataloged files by metadata, then optionally rank them semantically and filter them with a language model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query; required when semantic or llm is set",
				},
				"directory": map[string]interface{}{
					"type":        "string",
					"description": "Only files under this absolute directory",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "Only files with any of these extensions (e.g. pdf, .md)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Record type",
					"enum":        []string{"file", "directory"},
					"default":     "file",
				},
				"min_size": map[string]interface{}{
					"type":        "integer",
					"description": "Minimum size in bytes, inclusive",
					"minimum":     0,
				},
				"max_size": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum size in bytes, inclusive",
					"minimum":     0,
				},
				"modified_after": map[string]interface{}{
					"type":        "string",
					"description": "RFC 3339 timestamp or YYYY-MM-DD",
				},
				"modified_before": map[string]interface{}{
					"type":        "string",
					"description": "RFC 3339 timestamp or YYYY-MM-DD (a date includes that whole day)",
				},
				"semantic": map[string]interface{}{
					"type":        "boolean",
					"description": "Rank candidates by embedding similarity",
					"default":     false,
				},
				"llm": map[string]interface{}{
					"type":        "boolean",
					"description": "Ask a language model which candidates match",
					"default":     false,
				},
				"hard": map[string]interface{}{
					"type":        "boolean",
					"description": "Use the stronger language model",
					"default":     false,
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
					"minimum":     1,
					"maximum":     1000,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report catalog and embedding statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexTreeTool returns the tool definition for index_tree
func indexTreeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_tree",
		Description: "Render the cataloged files under a directory as a nested listing",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"directory": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the directory to render",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "Only render files with these extensions",
					"items":       map[string]interface{}{"type": "string"},
				},
				"max_entries": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum rendered children per directory",
					"minimum":     1,
				},
				"include_empty_dirs": map[string]interface{}{
					"type":        "boolean",
					"description": "Render directories with no matching files",
				},
			},
			Required: []string{"directory"},
		},
	}
}

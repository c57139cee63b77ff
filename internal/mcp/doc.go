// Package mcp implements the Model Context Protocol (MCP) server for lfind.
//
// The MCP server exposes four tools to AI assistants:
//   - index_directory: synchronize the catalog with a directory tree
//   - search_files: structural, semantic and language-model file search
//   - get_status: catalog and embedding statistics
//   - index_tree: a nested listing of cataloged files
//
// The server communicates over stdio with JSON-RPC 2.0:
//
//	lfind serve --transport stdio
//
// # Tool: index_directory
//
//	Request:
//	{
//	  "name": "index_directory",
//	  "arguments": {
//	    "path": "/home/me/docs",
//	    "ignore_patterns": [".*", "node_modules"],
//	    "skip_embeddings": false
//	  }
//	}
//
//	Response:
//	{
//	  "root": "/home/me/docs",
//	  "files_seen": 1204,
//	  "changed": 12,
//	  "unchanged": 1192,
//	  "deleted": 3,
//	  "embedded": 12,
//	  "duration_ms": 850
//	}
//
// # Tool: search_files
//
//	Request:
//	{
//	  "name": "search_files",
//	  "arguments": {
//	    "query": "tax documents from last year",
//	    "directory": "/home/me/docs",
//	    "extensions": ["pdf"],
//	    "modified_after": "2024-01-01",
//	    "semantic": true,
//	    "llm": true,
//	    "top_k": 10
//	  }
//	}
//
//	Response:
//	{
//	  "session_id": "7d0c...",
//	  "candidates": 84,
//	  "results": [
//	    {"name": "1040.pdf", "path": "/home/me/docs/tax/1040.pdf", "score": 0.83, "source": "semantic"},
//	    {"name": "w2.pdf", "path": "/home/me/docs/tax/w2.pdf", "source": "llm"}
//	  ]
//	}
//
// A stage whose embedding provider or language model fails contributes no
// results and is listed under "degraded"; the call still succeeds.
//
// # Error Handling
//
// Handlers return *MCPError, which the framework encodes as a JSON-RPC error:
//   - -32602: invalid params, including catalog contract violations
//   - -32603: internal error (catalog, filesystem)
//   - -32002: another sync pass holds the catalog
//   - -32004: semantic or llm search without a query
//
// Logs go to stderr or the configured log file; stdout belongs to the
// protocol.
package mcp

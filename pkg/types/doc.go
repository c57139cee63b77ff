// Package types provides the request and result shapes shared by the lfind
// front ends (CLI, MCP and HTTP).
//
// Requests carry user input as plain JSON-friendly values: timestamps are
// strings, sizes are optional pointers. Validate checks them before they are
// converted into catalog criteria:
//
//	req := types.SearchRequest{
//	    Query:      "quarterly budget",
//	    Directory:  "/home/me/docs",
//	    Extensions: []string{"pdf", "xlsx"},
//	    Semantic:   true,
//	}
//	if err := req.Validate(); err != nil {
//	    return err
//	}
//
// Results describe cataloged files by absolute path together with the stage
// that produced them (structural, semantic or llm) and, for semantic
// matches, a similarity score where higher is better.
package types

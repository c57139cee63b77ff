package types

import (
	"strings"
	"time"
)

// MaxTopK bounds the number of results one search may ask for
const MaxTopK = 1000

// SearchRequest is a multi-stage file search
type SearchRequest struct {
	Query          string   `json:"query"`
	Directory      string   `json:"directory,omitempty"`
	Extensions     []string `json:"extensions,omitempty"`
	Type           string   `json:"type,omitempty"` // file (default) or directory
	MinSize        *int64   `json:"min_size,omitempty"`
	MaxSize        *int64   `json:"max_size,omitempty"`
	ModifiedAfter  string   `json:"modified_after,omitempty"`
	ModifiedBefore string   `json:"modified_before,omitempty"`
	Semantic       bool     `json:"semantic,omitempty"`
	LLM            bool     `json:"llm,omitempty"`
	Hard           bool     `json:"hard,omitempty"` // use the stronger language model
	TopK           int      `json:"top_k,omitempty"`
}

// Validate checks the request fields that don't need the catalog
func (r *SearchRequest) Validate() error {
	if (r.Semantic || r.LLM) && strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if r.TopK < 0 || r.TopK > MaxTopK {
		return ErrInvalidTopK
	}
	switch r.Type {
	case "", "file", "directory":
	default:
		return ErrInvalidType
	}
	if (r.MinSize != nil && *r.MinSize < 0) || (r.MaxSize != nil && *r.MaxSize < 0) {
		return ErrInvalidSize
	}
	if r.MinSize != nil && r.MaxSize != nil && *r.MinSize > *r.MaxSize {
		return ErrSizeRange
	}

	after, err := ParseTimestamp(r.ModifiedAfter)
	if err != nil {
		return err
	}
	before, err := ParseUpperBound(r.ModifiedBefore)
	if err != nil {
		return err
	}
	if after != nil && before != nil && after.After(*before) {
		return ErrTimeRange
	}
	return nil
}

const dateLayout = "2006-01-02"

// ParseTimestamp accepts RFC 3339 or a bare date (midnight UTC). An empty
// string is nil.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidTimestamp
}

// ParseUpperBound parses an inclusive modified_before bound. A bare date
// covers that whole day, so "2024-03-01" ends at 23:59:59.999999999 UTC.
func ParseUpperBound(s string) (*time.Time, error) {
	t, err := ParseTimestamp(s)
	if err != nil || t == nil {
		return t, err
	}
	if _, derr := time.Parse(dateLayout, strings.TrimSpace(s)); derr == nil {
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		return &end, nil
	}
	return t, nil
}

// IndexRequest runs a sync pass over Path
type IndexRequest struct {
	Path               string   `json:"path"`
	IgnorePatterns     []string `json:"ignore_patterns,omitempty"`
	IncludeDirectories *bool    `json:"include_directories,omitempty"`
	SkipEmbeddings     bool     `json:"skip_embeddings,omitempty"`
}

// Validate checks that a path was given
func (r *IndexRequest) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return ErrPathRequired
	}
	return nil
}

// TreeRequest renders the catalog under Directory
type TreeRequest struct {
	Directory        string   `json:"directory"`
	Extensions       []string `json:"extensions,omitempty"`
	MaxEntries       int      `json:"max_entries,omitempty"`
	IncludeEmptyDirs *bool    `json:"include_empty_dirs,omitempty"`
}

// Validate checks the directory and the entry cap
func (r *TreeRequest) Validate() error {
	if strings.TrimSpace(r.Directory) == "" {
		return ErrPathRequired
	}
	if r.MaxEntries < 0 {
		return ErrInvalidMaxEntries
	}
	return nil
}

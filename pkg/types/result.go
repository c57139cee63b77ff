package types

import (
	"math"
	"time"
)

// FileResult is one returned catalog record
type FileResult struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"` // absolute
	Type       string    `json:"type"`
	Extension  string    `json:"extension,omitempty"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Score      float64   `json:"score,omitempty"` // semantic similarity, higher is better
	Source     string    `json:"source"`          // structural, semantic or llm
}

// Validate checks that the result is presentable
func (r *FileResult) Validate() error {
	if r.Path == "" {
		return ErrMissingRecordPath
	}
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
		return ErrInvalidResultScore
	}
	return nil
}

// SearchResponse is the outcome of a search
type SearchResponse struct {
	SessionID  string       `json:"session_id"`
	Query      string       `json:"query"`
	Candidates int          `json:"candidates"`
	Degraded   []string     `json:"degraded,omitempty"`
	Results    []FileResult `json:"results"`
}

// IndexResponse summarizes one sync pass
type IndexResponse struct {
	Root             string   `json:"root"`
	FilesSeen        int      `json:"files_seen"`
	Changed          int      `json:"changed"`
	Unchanged        int      `json:"unchanged"`
	Skipped          int      `json:"skipped"`
	Deleted          int      `json:"deleted"`
	Embedded         int      `json:"embedded"`
	EmbeddingsFailed int      `json:"embeddings_failed"`
	DurationMS       int64    `json:"duration_ms"`
	Errors           []string `json:"errors,omitempty"`
	ErrorCount       int      `json:"error_count,omitempty"`
}

// MaxReportedErrors caps IndexResponse.Errors
const MaxReportedErrors = 5

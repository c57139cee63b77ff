package types

import "errors"

// Domain errors for request validation
var (
	ErrEmptyQuery         = errors.New("query is required for semantic or llm search")
	ErrInvalidTopK        = errors.New("top_k must be between 0 and 1000")
	ErrInvalidType        = errors.New("type must be 'file' or 'directory'")
	ErrInvalidSize        = errors.New("sizes must be non-negative")
	ErrSizeRange          = errors.New("min_size exceeds max_size")
	ErrInvalidTimestamp   = errors.New("timestamps must be RFC 3339 or YYYY-MM-DD")
	ErrTimeRange          = errors.New("modified_after is later than modified_before")
	ErrPathRequired       = errors.New("path is required")
	ErrInvalidMaxEntries  = errors.New("max_entries must be non-negative")
	ErrMissingRecordPath  = errors.New("result path is required")
	ErrInvalidResultScore = errors.New("result score must be finite")
)

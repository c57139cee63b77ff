package pipeline

import (
	"sync"
	"time"
)

// Search types recorded in history
const (
	SearchStructural = "structural"
	SearchSemantic   = "semantic"
	SearchLLM        = "llm"
	SearchMulti      = "multi"
)

// HistoryEntry records one stage of one invocation
type HistoryEntry struct {
	SessionID   string         `json:"session_id"`
	Query       string         `json:"query"`
	SearchType  string         `json:"search_type"`
	Params      map[string]any `json:"params,omitempty"`
	Results     []int64        `json:"results"`
	ResultCount int            `json:"result_count"`
	Error       string         `json:"error,omitempty"`
	At          time.Time      `json:"at"`
}

// DefaultHistoryLimit is the number of entries kept when no limit is set
const DefaultHistoryLimit = 1000

// History is an in-memory log of stage invocations. Once it holds limit
// entries each append drops the oldest one. The zero value keeps
// DefaultHistoryLimit entries.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []HistoryEntry
}

// NewHistory creates a log keeping the newest limit entries
func NewHistory(limit int) *History {
	h := &History{}
	h.SetLimit(limit)
	return h
}

// SetLimit changes the capacity, dropping the oldest entries beyond it.
// A limit <= 0 restores DefaultHistoryLimit.
func (h *History) SetLimit(limit int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limit = limit
	h.trim()
}

func (h *History) append(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	h.trim()
}

// trim reslices past the oldest entries; the next growth of the backing
// array copies only the live ones
func (h *History) trim() {
	limit := h.limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if over := len(h.entries) - limit; over > 0 {
		clear(h.entries[:over])
		h.entries = h.entries[over:]
	}
}

// Entries returns a copy of the log, oldest first
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.entries))
	for i, e := range h.entries {
		e.Results = append([]int64(nil), e.Results...)
		if e.Params != nil {
			params := make(map[string]any, len(e.Params))
			for k, v := range e.Params {
				params[k] = v
			}
			e.Params = params
		}
		out[i] = e
	}
	return out
}

// Session returns the entries of one invocation
func (h *History) Session(id string) []HistoryEntry {
	var out []HistoryEntry
	for _, e := range h.Entries() {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/searcher"
	"github.com/dshills/lfind/internal/storage"
)

// DefaultTopK caps results when a request leaves TopK at zero
const DefaultTopK = 10

var (
	errNoSemantic = errors.New("no semantic searcher configured")
	errNoLLM      = errors.New("no language model configured")
)

// Result sources
const (
	SourceStructural = "structural"
	SourceSemantic   = "semantic"
	SourceLLM        = "llm"
)

// Semantic ranks candidates by vector similarity (searcher.Searcher)
type Semantic interface {
	Search(ctx context.Context, query string, candidates []*storage.FileRecord, k int) ([]searcher.Result, error)
}

// LanguageModel picks matching names out of candidates (llm.Service)
type LanguageModel interface {
	Complete(ctx context.Context, query string, filenames []string, hard bool) ([]string, error)
}

// Request is one multi-stage search
type Request struct {
	Query     string
	Criteria  storage.Criteria
	Semantic  bool
	LLM       bool
	HardModel bool
	TopK      int
}

// Result is one returned record. Score is the similarity for semantic
// results and zero otherwise.
type Result struct {
	Record *storage.FileRecord
	Score  float64
	Source string
}

// Response is the outcome of MultiSearch
type Response struct {
	SessionID string
	Results   []Result
	// Candidates is the size of the structural candidate set
	Candidates int
	// Degraded lists optional stages that failed and contributed nothing
	Degraded []string
}

// Pipeline runs structural filter, then optional semantic search and LLM
// filter over the same candidates, then merges
type Pipeline struct {
	store    storage.Catalog
	semantic Semantic
	llm      LanguageModel
	history  *History
	logger   *slog.Logger
}

// New creates a pipeline. semantic and llm may be nil; requests for a missing
// stage degrade it to empty.
func New(store storage.Catalog, semantic Semantic, llm LanguageModel, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		semantic: semantic,
		llm:      llm,
		history:  NewHistory(DefaultHistoryLimit),
		logger:   logger,
	}
}

// History returns a copy of the search history
func (p *Pipeline) History() []HistoryEntry {
	return p.history.Entries()
}

// SetHistoryLimit caps the search history at the newest limit entries
func (p *Pipeline) SetHistoryLimit(limit int) {
	p.history.SetLimit(limit)
}

// ClearHistory empties the search history
func (p *Pipeline) ClearHistory() {
	p.history.Clear()
}

func (r *Request) validate() error {
	if r.TopK < 0 {
		return apperrors.Contract("pipeline.MultiSearch", "top_k must not be negative, got %d", r.TopK)
	}
	if (r.Semantic || r.LLM) && strings.TrimSpace(r.Query) == "" {
		return apperrors.Contract("pipeline.MultiSearch", "query is required for semantic or llm search")
	}
	if err := r.Criteria.Validate(); err != nil {
		return err
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	// Only files are candidates unless asked otherwise
	if r.Criteria.Type == "" {
		r.Criteria.Type = storage.TypeFile
	}
	return nil
}

// MultiSearch runs the stages in order. Store and contract errors abort;
// failures of the embedding or language model degrade their stage to empty.
func (p *Pipeline) MultiSearch(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	session := &session{
		p:   p,
		id:  uuid.NewString(),
		req: req,
	}
	resp := &Response{SessionID: session.id}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates, err := session.structural(ctx)
	if err != nil {
		return nil, err
	}
	resp.Candidates = len(candidates)
	if len(candidates) == 0 {
		resp.Results = []Result{}
		return resp, nil
	}

	var semantic []searcher.Result
	if req.Semantic {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		semantic, err = session.semanticStage(ctx, candidates)
		if err != nil {
			if !degradable(ctx, err) {
				return nil, err
			}
			resp.Degraded = append(resp.Degraded, SearchSemantic)
		}
	}

	var llmMatches []*storage.FileRecord
	if req.LLM {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		llmMatches, err = session.llmStage(ctx, candidates)
		if err != nil {
			if !degradable(ctx, err) {
				return nil, err
			}
			resp.Degraded = append(resp.Degraded, SearchLLM)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !req.Semantic && !req.LLM {
		resp.Results = make([]Result, 0, min(len(candidates), req.TopK))
		for _, rec := range candidates {
			if len(resp.Results) == req.TopK {
				break
			}
			resp.Results = append(resp.Results, Result{Record: rec, Source: SourceStructural})
		}
	} else {
		resp.Results = session.merge(semantic, llmMatches)
	}

	session.record(SearchMulti, map[string]any{
		"semantic":   req.Semantic,
		"llm":        req.LLM,
		"hard_model": req.HardModel,
		"top_k":      req.TopK,
		"degraded":   append([]string(nil), resp.Degraded...),
	}, resultIDs(resp.Results), nil)

	return resp, nil
}

// degradable reports whether a stage error is absorbed. Cancellation, store
// and contract errors are not.
func degradable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !apperrors.IsStore(err) && !apperrors.IsContract(err)
}

// session carries one invocation through the stages
type session struct {
	p   *Pipeline
	id  string
	req Request
}

func (s *session) record(searchType string, params map[string]any, ids []int64, err error) {
	entry := HistoryEntry{
		SessionID:   s.id,
		Query:       s.req.Query,
		SearchType:  searchType,
		Params:      params,
		Results:     ids,
		ResultCount: len(ids),
		At:          time.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.p.history.append(entry)
}

func (s *session) structural(ctx context.Context) ([]*storage.FileRecord, error) {
	c := s.req.Criteria
	records, err := s.p.store.Query(ctx, c)

	params := map[string]any{
		"directory":  c.Directory,
		"extensions": c.NormalizedExtensions(),
		"type":       string(c.Type),
	}
	if c.MinSize != nil {
		params["min_size"] = *c.MinSize
	}
	if c.MaxSize != nil {
		params["max_size"] = *c.MaxSize
	}
	if c.ModifiedAfter != nil {
		params["modified_after"] = *c.ModifiedAfter
	}
	if c.ModifiedBefore != nil {
		params["modified_before"] = *c.ModifiedBefore
	}
	s.record(SearchStructural, params, recordIDs(records), err)

	if err != nil {
		return nil, apperrors.Store("pipeline.structural", err)
	}
	return records, nil
}

func (s *session) semanticStage(ctx context.Context, candidates []*storage.FileRecord) ([]searcher.Result, error) {
	params := map[string]any{"top_k": s.req.TopK, "candidates": len(candidates)}

	if s.p.semantic == nil {
		err := apperrors.Collaborator("pipeline.semantic", errNoSemantic)
		s.record(SearchSemantic, params, nil, err)
		s.p.logger.Warn("semantic search unavailable", slog.String("session", s.id))
		return nil, err
	}

	results, err := s.p.semantic.Search(ctx, s.req.Query, candidates, s.req.TopK)
	if err != nil {
		s.record(SearchSemantic, params, nil, err)
		s.p.logger.Warn("semantic search failed",
			slog.String("session", s.id),
			slog.String("error", err.Error()))
		return nil, err
	}

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.Record.ID
	}
	s.record(SearchSemantic, params, ids, nil)
	return results, nil
}

func (s *session) llmStage(ctx context.Context, candidates []*storage.FileRecord) ([]*storage.FileRecord, error) {
	params := map[string]any{"hard_model": s.req.HardModel, "candidates": len(candidates)}

	if s.p.llm == nil {
		err := apperrors.Collaborator("pipeline.llm", errNoLLM)
		s.record(SearchLLM, params, nil, err)
		s.p.logger.Warn("llm search unavailable", slog.String("session", s.id))
		return nil, err
	}

	labels := Labels(candidates, s.req.Criteria.Directory)
	lines, err := s.p.llm.Complete(ctx, s.req.Query, labels, s.req.HardModel)
	if err != nil {
		s.record(SearchLLM, params, nil, err)
		s.p.logger.Warn("llm search failed",
			slog.String("session", s.id),
			slog.String("error", err.Error()))
		return nil, err
	}

	matched := MatchNames(lines, candidates, labels)
	params["returned"] = len(lines)
	s.record(SearchLLM, params, recordIDs(matched), nil)
	return matched, nil
}

func (s *session) merge(semantic []searcher.Result, llmMatches []*storage.FileRecord) []Result {
	semanticRecords := make([]*storage.FileRecord, len(semantic))
	scores := make(map[int64]float64, len(semantic))
	for i, r := range semantic {
		semanticRecords[i] = r.Record
		scores[r.Record.ID] = r.Score
	}

	merged := Merge(semanticRecords, llmMatches, s.req.TopK)
	results := make([]Result, len(merged))
	for i, rec := range merged {
		if score, ok := scores[rec.ID]; ok {
			results[i] = Result{Record: rec, Score: score, Source: SourceSemantic}
		} else {
			results[i] = Result{Record: rec, Source: SourceLLM}
		}
	}
	return results
}

func recordIDs(records []*storage.FileRecord) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func resultIDs(results []Result) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.Record.ID
	}
	return ids
}

package app

import (
	"context"
	"path/filepath"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/pipeline"
	"github.com/dshills/lfind/internal/storage"
	"github.com/dshills/lfind/pkg/types"
)

// SearchFiles validates a front-end search request and runs it
func (a *App) SearchFiles(ctx context.Context, in types.SearchRequest) (*types.SearchResponse, error) {
	req, err := PipelineRequest(in)
	if err != nil {
		return nil, err
	}
	resp, err := a.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return SearchResponse(in.Query, resp), nil
}

// PipelineRequest converts a front-end request. Validation failures are
// contract errors; a relative directory fails later in the catalog.
func PipelineRequest(in types.SearchRequest) (pipeline.Request, error) {
	const op = "app.SearchFiles"
	if err := in.Validate(); err != nil {
		return pipeline.Request{}, apperrors.ContractWrap(op, err)
	}

	criteria := storage.Criteria{
		Extensions: in.Extensions,
		Type:       storage.FileType(in.Type),
		MinSize:    in.MinSize,
		MaxSize:    in.MaxSize,
	}
	if in.Directory != "" {
		criteria.Directory = filepath.Clean(in.Directory)
	}
	// Validate already parsed both timestamps once
	criteria.ModifiedAfter, _ = types.ParseTimestamp(in.ModifiedAfter)
	criteria.ModifiedBefore, _ = types.ParseUpperBound(in.ModifiedBefore)

	return pipeline.Request{
		Query:     in.Query,
		Criteria:  criteria,
		Semantic:  in.Semantic,
		LLM:       in.LLM,
		HardModel: in.Hard,
		TopK:      in.TopK,
	}, nil
}

// SearchResponse converts pipeline output for the front ends
func SearchResponse(query string, resp *pipeline.Response) *types.SearchResponse {
	out := &types.SearchResponse{
		SessionID:  resp.SessionID,
		Query:      query,
		Candidates: resp.Candidates,
		Degraded:   resp.Degraded,
		Results:    make([]types.FileResult, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, FileResult(r.Record, r.Score, r.Source))
	}
	return out
}

// FileResult converts one catalog record
func FileResult(rec *storage.FileRecord, score float64, source string) types.FileResult {
	return types.FileResult{
		ID:         rec.ID,
		Name:       rec.Name,
		Path:       rec.AbsolutePath,
		Type:       string(rec.Type),
		Extension:  rec.Extension,
		Size:       rec.Size,
		ModifiedAt: rec.ModifiedAt,
		Score:      score,
		Source:     source,
	}
}

// IndexDirectory validates a front-end index request and runs a sync pass
func (a *App) IndexDirectory(ctx context.Context, in types.IndexRequest) (*types.IndexResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.ContractWrap("app.IndexDirectory", err)
	}
	root, err := filepath.Abs(in.Path)
	if err != nil {
		return nil, apperrors.ContractWrap("app.IndexDirectory", err)
	}

	stats, err := a.Sync(ctx, root, SyncOptions{
		IgnorePatterns:     in.IgnorePatterns,
		IncludeDirectories: in.IncludeDirectories,
		SkipEmbeddings:     in.SkipEmbeddings,
	})
	if err != nil {
		return nil, err
	}

	out := &types.IndexResponse{
		Root:             root,
		FilesSeen:        stats.FilesSeen,
		Changed:          stats.Changed,
		Unchanged:        stats.Unchanged,
		Skipped:          stats.Skipped,
		Deleted:          stats.Deleted,
		Embedded:         stats.Embedded,
		EmbeddingsFailed: stats.EmbeddingsFailed,
		DurationMS:       stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		out.Errors = stats.ErrorMessages[:min(n, types.MaxReportedErrors)]
		out.ErrorCount = n
	}
	return out, nil
}

// TreeFor validates a front-end tree request and renders it
func (a *App) TreeFor(ctx context.Context, in types.TreeRequest) (*TreeResult, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.ContractWrap("app.Tree", err)
	}
	return a.Tree(ctx, in.Directory, TreeOptions{
		MaxEntries:       in.MaxEntries,
		IncludeEmptyDirs: in.IncludeEmptyDirs,
		Extensions:       in.Extensions,
	})
}

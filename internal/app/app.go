// Package app wires the catalog, vector index, indexer and search pipeline
// from a config.Config. Every front end (CLI, MCP, HTTP) goes through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/config"
	"github.com/dshills/lfind/internal/document"
	"github.com/dshills/lfind/internal/embedder"
	"github.com/dshills/lfind/internal/extractor"
	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/internal/llm"
	"github.com/dshills/lfind/internal/pipeline"
	"github.com/dshills/lfind/internal/searcher"
	"github.com/dshills/lfind/internal/storage"
	"github.com/dshills/lfind/internal/tree"
	"github.com/dshills/lfind/internal/vectorindex"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Store    storage.Storage
	Embedder embedder.Embedder
	Index    vectorindex.Index
	Builder  *document.Builder
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	LLM      *llm.Service // nil when no language model could be configured
	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger
}

// Open builds an App. An existing vector index file is loaded; a missing one
// starts empty.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ContractWrap("app.Open", err)
	}

	if cfg.Index.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Index.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Index.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &App{Config: cfg, Store: store, Logger: logger}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.Embedder = emb

	metric, err := vectorindex.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return err
	}
	index, err := vectorindex.New(cfg.Index.VectorIndex, emb.Dimension(), metric)
	if err != nil {
		return err
	}
	if _, err := vectorindex.LoadIfExists(index, cfg.Index.VectorPath); err != nil {
		return err
	}
	a.Index = index

	a.Builder = document.NewBuilder(extractor.NewDefaultRegistry(a.Logger), cfg.Index.MaxChars, a.Logger)

	a.Indexer = indexer.New(a.Store, indexer.Options{
		Embedder:   emb,
		Index:      index,
		Builder:    a.Builder,
		VectorPath: cfg.Index.VectorPath,
		LockPath:   indexer.LockPathFor(cfg.Index.DBPath),
		Logger:     a.Logger,
	})

	a.Searcher, err = searcher.New(a.Store, emb, index, a.Builder, searcher.Options{
		Threshold:  cfg.Search.ScopedThreshold,
		Oversample: cfg.Search.OversampleFactor,
	}, a.Logger)
	if err != nil {
		return err
	}

	var lm pipeline.LanguageModel
	def, hard := cfg.LLMConfigs()
	if svc, err := llm.NewService(def, hard, a.Logger); err != nil {
		a.Logger.Warn("language model unavailable, llm search will degrade",
			slog.String("error", err.Error()))
	} else {
		a.LLM = svc
		lm = svc
	}

	a.Pipeline = pipeline.New(a.Store, a.Searcher, lm, a.Logger)
	a.Pipeline.SetHistoryLimit(cfg.Search.HistoryLimit)

	a.Logger.Debug("app wired",
		slog.String("db", cfg.Index.DBPath),
		slog.String("embedder", emb.Provider()),
		slog.String("model", emb.Model()),
		slog.Int("dimension", emb.Dimension()),
		slog.String("vector_index", cfg.Index.VectorIndex),
		slog.Int("vectors", index.Count()))
	return nil
}

// Close releases the embedder and the catalog
func (a *App) Close() error {
	var errs []error
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// SyncOptions overrides per-call settings of a sync pass
type SyncOptions struct {
	IgnorePatterns     []string // nil keeps the configured patterns
	IncludeDirectories *bool
	SkipEmbeddings     bool
}

// Sync runs one pass over root with the configured ignore patterns
func (a *App) Sync(ctx context.Context, root string, opts SyncOptions) (*indexer.Statistics, error) {
	cfg := &indexer.Config{
		IgnorePatterns:     a.Config.Index.IgnorePatterns,
		IncludeDirectories: a.Config.Index.IncludeDirectories,
		SkipEmbeddings:     opts.SkipEmbeddings,
		Workers:            a.Config.Index.Workers,
		BatchSize:          a.Config.Index.BatchSize,
		CheckpointSize:     a.Config.Index.CheckpointSize,
	}
	if opts.IgnorePatterns != nil {
		cfg.IgnorePatterns = opts.IgnorePatterns
	}
	if opts.IncludeDirectories != nil {
		cfg.IncludeDirectories = *opts.IncludeDirectories
	}
	return a.Indexer.Sync(ctx, root, cfg)
}

// Search runs the multi-stage pipeline. A zero TopK takes the configured one.
func (a *App) Search(ctx context.Context, req pipeline.Request) (*pipeline.Response, error) {
	if req.TopK == 0 {
		req.TopK = a.Config.Search.TopK
	}
	return a.Pipeline.MultiSearch(ctx, req)
}

// TreeOptions selects and shapes a rendered tree. Zero values take the
// configured defaults.
type TreeOptions struct {
	MaxEntries       int
	IncludeEmptyDirs *bool
	Extensions       []string
}

// TreeResult is a rendered listing of the catalog under a directory
type TreeResult struct {
	Root  string   `json:"root"`
	Lines []string `json:"lines"`
	Files []string `json:"files"`
}

// Tree renders cataloged records under root
func (a *App) Tree(ctx context.Context, root string, opts TreeOptions) (*TreeResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.ContractWrap("app.Tree", err)
	}
	records, err := a.Store.Query(ctx, storage.Criteria{Directory: abs})
	if err != nil {
		return nil, err
	}

	topts := tree.Options{
		MaxEntries:       a.Config.Tree.MaxEntries,
		IncludeEmptyDirs: a.Config.Tree.IncludeEmptyDirs,
		Extensions:       opts.Extensions,
	}
	if opts.MaxEntries > 0 {
		topts.MaxEntries = opts.MaxEntries
	}
	if opts.IncludeEmptyDirs != nil {
		topts.IncludeEmptyDirs = *opts.IncludeEmptyDirs
	}

	lines, files := tree.Render(tree.Build(records, abs), topts)
	return &TreeResult{Root: abs, Lines: lines, Files: files}, nil
}

// Status describes the catalog and the wired components
type Status struct {
	Files             int        `json:"files"`
	Directories       int        `json:"directories"`
	Embedded          int        `json:"embedded"`
	TitleEmbeddings   int        `json:"title_embeddings"`
	ContentEmbeddings int        `json:"content_embeddings"`
	Vectors           int        `json:"vectors"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	LastSyncDeleted   int        `json:"last_sync_deleted"`
	Syncing           bool       `json:"syncing"`
	EmbeddingProvider string     `json:"embedding_provider"`
	EmbeddingModel    string     `json:"embedding_model"`
	Dimension         int        `json:"dimension"`
	VectorIndex       string     `json:"vector_index"`
	LLMAvailable      bool       `json:"llm_available"`
	DBPath            string     `json:"db_path"`
}

// Status reports catalog statistics
func (a *App) Status(ctx context.Context) (*Status, error) {
	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Files:             stats.Files,
		Directories:       stats.Directories,
		Embedded:          stats.Embedded,
		TitleEmbeddings:   stats.TitleEmbeddings,
		ContentEmbeddings: stats.ContentEmbeddings,
		Vectors:           a.Index.Count(),
		Syncing:           a.Indexer.Busy(),
		EmbeddingProvider: a.Embedder.Provider(),
		EmbeddingModel:    a.Embedder.Model(),
		Dimension:         a.Embedder.Dimension(),
		VectorIndex:       a.Config.Index.VectorIndex,
		LLMAvailable:      a.LLM != nil,
		DBPath:            a.Config.Index.DBPath,
	}
	if stats.LastSync != nil {
		finished := stats.LastSync.FinishedAt
		st.LastSyncAt = &finished
		st.LastSyncDeleted = stats.LastSync.Deleted
	}
	return st, nil
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/document"
	"github.com/dshills/lfind/internal/embedder"
	"github.com/dshills/lfind/internal/storage"
	"github.com/dshills/lfind/internal/vectorindex"
)

// ErrSyncInProgress is returned when another pass holds the catalog
var ErrSyncInProgress = errors.New("sync already in progress")

// DefaultIgnorePatterns skips dotfiles and dot directories
var DefaultIgnorePatterns = []string{".*"}

// DefaultBatchSize is the number of touches committed per transaction
const DefaultBatchSize = 200

// DefaultCheckpointSize is the number of new vectors between index saves.
// Handles reach the catalog only after the vectors behind them are saved.
const DefaultCheckpointSize = 512

// Indexer coordinates a sync pass: walk -> touch -> sweep -> embed
type Indexer struct {
	storage    storage.Storage
	embedder   embedder.Embedder
	index      vectorindex.Index
	builder    *document.Builder
	vectorPath string
	logger     *slog.Logger

	lock     IndexLock
	fileLock *FileLock

	// identity of vectorPath as this process last saved or loaded it
	saved fileState
}

type fileState struct {
	size    int64
	modTime int64
	exists  bool
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{size: info.Size(), modTime: info.ModTime().UnixNano(), exists: true}
}

// assignment links a record to the handle of its freshly added vector
type assignment struct {
	id            int64
	handle        int64
	embeddingType storage.EmbeddingType
}

// Options wires the indexer's collaborators. Embedder and Index may be nil,
// in which case passes never embed.
type Options struct {
	Embedder   embedder.Embedder
	Index      vectorindex.Index
	Builder    *document.Builder
	VectorPath string // where the index is saved after embedding
	LockPath   string // cross-process lock file, "" disables it
	Logger     *slog.Logger
}

// Config contains configuration for one sync pass
type Config struct {
	IgnorePatterns     []string // matched against base names (default: ".*")
	IncludeDirectories bool     // catalog directories as well as files
	SkipEmbeddings     bool     // stop after the sweep
	Workers            int      // document builders (default: runtime.NumCPU())
	BatchSize          int      // touches per transaction (default: 200)
	EmbedBatchSize     int      // texts per embedding request (default: embedder.DefaultBatchSize)
	CheckpointSize     int      // new vectors per index save and catalog commit (default: 512)
}

// Statistics contains statistics about one sync pass
type Statistics struct {
	FilesSeen        int
	Changed          int
	Unchanged        int
	Skipped          int
	Deleted          int
	Embedded         int
	EmbeddingsFailed int
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance
func New(store storage.Storage, opts Options) *Indexer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builder := opts.Builder
	if builder == nil {
		builder = document.NewBuilder(nil, 0, logger)
	}
	return &Indexer{
		storage:    store,
		embedder:   opts.Embedder,
		index:      opts.Index,
		builder:    builder,
		vectorPath: opts.VectorPath,
		logger:     logger,
		fileLock:   NewFileLock(opts.LockPath),
	}
}

// Busy reports whether a pass is running in this process
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.IgnorePatterns == nil {
		out.IgnorePatterns = DefaultIgnorePatterns
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.BatchSize <= 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = embedder.DefaultBatchSize
	}
	if out.EmbedBatchSize > embedder.MaxBatchSize {
		out.EmbedBatchSize = embedder.MaxBatchSize
	}
	if out.CheckpointSize <= 0 {
		out.CheckpointSize = DefaultCheckpointSize
	}
	return &out
}

func (c *Config) validate() error {
	for _, p := range c.IgnorePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return apperrors.Contract("indexer.Sync", "invalid ignore pattern %q: %v", p, err)
		}
	}
	return nil
}

// Sync reconciles the catalog with the tree under root, then embeds new and
// changed files. Store failures abort the pass before the sweep; unreadable
// paths and embedding failures are counted and skipped.
func (idx *Indexer) Sync(ctx context.Context, root string, config *Config) (*Statistics, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	embedding := !config.SkipEmbeddings && idx.embedder != nil && idx.index != nil
	if embedding && idx.embedder.Dimension() != idx.index.Dimension() {
		return nil, apperrors.ContractWrap("indexer.Sync", vectorindex.ErrDimensionMismatch{
			Expected: idx.index.Dimension(),
			Got:      idx.embedder.Dimension(),
		})
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Contract("indexer.Sync", "invalid root %q: %v", root, err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, apperrors.ContractWrap("indexer.Sync", fmt.Errorf("root %s: %w", absRoot, err))
	}

	if !idx.lock.TryAcquire() {
		return nil, ErrSyncInProgress
	}
	defer idx.lock.Release()

	acquired, err := idx.fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}
	defer func() {
		if err := idx.fileLock.Unlock(); err != nil {
			idx.logger.Warn("failed to release sync lock", slog.String("error", err.Error()))
		}
	}()

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	idx.logger.Info("sync started", slog.String("root", absRoot))

	pass, err := idx.storage.ResetSeenFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync pass: %w", err)
	}

	if err := idx.walk(ctx, absRoot, pass, config, stats); err != nil {
		return nil, err
	}

	deleted, err := idx.storage.Sweep(ctx, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep: %w", err)
	}
	stats.Deleted = deleted

	if embedding {
		if err := idx.refreshIndex(ctx); err != nil {
			return nil, err
		}
		if err := idx.embedPending(ctx, config, stats); err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("sync finished",
		slog.String("root", absRoot),
		slog.Int("seen", stats.FilesSeen),
		slog.Int("changed", stats.Changed),
		slog.Int("deleted", stats.Deleted),
		slog.Int("embedded", stats.Embedded),
		slog.Int("embeddings_failed", stats.EmbeddingsFailed),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

func shouldIgnore(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// walk touches every non-ignored path under root, committing in batches
func (idx *Indexer) walk(ctx context.Context, root string, pass storage.Pass, config *Config, stats *Statistics) error {
	batch := make([]string, 0, config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := idx.touchBatch(ctx, pass, batch, stats)
		batch = batch[:0]
		return err
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			stats.Skipped++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
			idx.logger.Debug("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		if path == root {
			return nil
		}
		if shouldIgnore(d.Name(), config.IgnorePatterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && !config.IncludeDirectories {
			return nil
		}

		batch = append(batch, path)
		if len(batch) >= config.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if apperrors.KindOf(err) != apperrors.KindUnknown {
			return err
		}
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return flush()
}

// touchBatch touches paths within a transaction
func (idx *Indexer) touchBatch(ctx context.Context, pass storage.Pass, paths []string, stats *Statistics) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return apperrors.Store("indexer.touch", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range paths {
		outcome, err := tx.TouchPath(ctx, pass, path)
		if err != nil {
			return err
		}
		switch outcome {
		case storage.TouchChanged:
			stats.FilesSeen++
			stats.Changed++
		case storage.TouchUnchanged:
			stats.FilesSeen++
			stats.Unchanged++
		case storage.TouchSkipped:
			stats.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Store("indexer.touch", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// refreshIndex reloads the saved index when another process rewrote it
// since this one last saved or loaded it, then drops catalog references to
// vectors the index does not hold so those records are embedded again.
// Callers hold the sync locks.
func (idx *Indexer) refreshIndex(ctx context.Context) error {
	if idx.vectorPath != "" {
		state := statFile(idx.vectorPath)
		if state.exists && state != idx.saved {
			if _, err := vectorindex.LoadIfExists(idx.index, idx.vectorPath); err != nil {
				return err
			}
			idx.logger.Debug("reloaded vector index",
				slog.String("path", idx.vectorPath),
				slog.Int("vectors", idx.index.Count()))
		}
		idx.saved = state
	}

	mappings, err := idx.storage.EmbeddingMappings(ctx)
	if err != nil {
		return fmt.Errorf("failed to read embedding references: %w", err)
	}
	var dangling []int64
	for handle := range mappings {
		if _, ok := idx.index.Lookup(handle); !ok {
			dangling = append(dangling, handle)
		}
	}
	if len(dangling) == 0 {
		return nil
	}
	cleared, err := idx.storage.ClearEmbeddings(ctx, dangling)
	if err != nil {
		return err
	}
	idx.logger.Warn("released embeddings missing from the vector index",
		slog.Int("records", cleared))
	return nil
}

// embedPending embeds every file without an embedding. Vectors are saved
// and their handles committed every CheckpointSize vectors and once more at
// the end, including when the pass is cut short.
func (idx *Indexer) embedPending(ctx context.Context, config *Config, stats *Statistics) error {
	pending, err := idx.storage.PendingEmbeddings(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list pending embeddings: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	idx.logger.Info("embedding files",
		slog.Int("pending", len(pending)),
		slog.String("provider", idx.embedder.Provider()),
		slog.String("model", idx.embedder.Model()))

	var unsaved []assignment
	checkpoint := func(ctx context.Context) error {
		if len(unsaved) == 0 {
			return nil
		}
		err := idx.checkpoint(ctx, unsaved, stats)
		unsaved = unsaved[:0]
		return err
	}
	abort := func(err error) error {
		// completed batches survive cancellation
		if cerr := checkpoint(context.WithoutCancel(ctx)); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}

	for i := 0; i < len(pending); i += config.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		end := min(i+config.EmbedBatchSize, len(pending))
		added, err := idx.embedBatch(ctx, pending[i:end], config, stats)
		if err != nil {
			return abort(err)
		}
		unsaved = append(unsaved, added...)
		if len(unsaved) >= config.CheckpointSize {
			if err := checkpoint(ctx); err != nil {
				return err
			}
		}
	}
	return checkpoint(ctx)
}

// checkpoint saves the index and then records the handles. A failed save
// commits nothing: the vectors stay unreferenced and the records pending.
func (idx *Indexer) checkpoint(ctx context.Context, added []assignment, stats *Statistics) error {
	if idx.vectorPath != "" {
		if err := idx.index.Save(idx.vectorPath); err != nil {
			idx.rollbackIndex()
			return apperrors.Store("indexer.embed", fmt.Errorf("failed to save vector index: %w", err))
		}
		idx.saved = statFile(idx.vectorPath)
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return apperrors.Store("indexer.embed", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	recorded := 0
	for _, a := range added {
		if err := tx.SetEmbedding(ctx, a.id, a.handle, a.embeddingType); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// record vanished, its vector stays orphaned
				continue
			}
			return err
		}
		recorded++
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Store("indexer.embed", fmt.Errorf("failed to commit transaction: %w", err))
	}

	stats.Embedded += recorded
	return nil
}

// rollbackIndex drops unsaved vectors by reloading the last save, so their
// handles are never served to searches. Without a save the next pass
// reloads whatever another process wrote.
func (idx *Indexer) rollbackIndex() {
	idx.saved = fileState{}
	if _, err := vectorindex.LoadIfExists(idx.index, idx.vectorPath); err != nil {
		idx.logger.Warn("failed to roll back vector index",
			slog.String("path", idx.vectorPath),
			slog.String("error", err.Error()))
	}
}

// embedBatch builds documents concurrently, embeds them in one request and
// adds the vectors to the index. The returned assignments are not yet in the
// catalog.
func (idx *Indexer) embedBatch(ctx context.Context, records []*storage.FileRecord, config *Config, stats *Statistics) ([]assignment, error) {
	docs := make([]document.Document, len(records))
	built := make([]bool, len(records))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i, rec := range records {
		g.Go(func() error {
			doc, err := idx.builder.Build(gctx, rec)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if !errors.Is(err, document.ErrNotEmbeddable) {
					mu.Lock()
					stats.EmbeddingsFailed++
					stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", rec.AbsolutePath, err))
					mu.Unlock()
				}
				return nil
			}
			docs[i] = doc
			built[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		texts   []string
		targets []int
	)
	for i := range records {
		if built[i] {
			texts = append(texts, docs[i].Text)
			targets = append(targets, i)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stats.EmbeddingsFailed += len(texts)
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("embedding batch of %d: %v", len(texts), err))
		idx.logger.Warn("embedding batch failed",
			slog.Int("size", len(texts)),
			slog.String("error", err.Error()))
		return nil, nil
	}

	dim := idx.index.Dimension()
	var (
		vectors [][]float32
		owners  []*storage.FileRecord
		types   []storage.EmbeddingType
	)
	for j, emb := range resp.Embeddings {
		if j >= len(targets) {
			break
		}
		rec := records[targets[j]]
		if emb == nil || len(emb.Vector) != dim {
			stats.EmbeddingsFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: embedding has wrong dimension", rec.AbsolutePath))
			continue
		}
		vectors = append(vectors, emb.Vector)
		owners = append(owners, rec)
		types = append(types, docs[targets[j]].Type)
	}
	if short := len(targets) - len(resp.Embeddings); short > 0 {
		stats.EmbeddingsFailed += short
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	handles, err := idx.index.Add(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to add vectors: %w", err)
	}

	added := make([]assignment, len(owners))
	for j, rec := range owners {
		added[j] = assignment{id: rec.ID, handle: handles[j], embeddingType: types[j]}
	}
	return added, nil
}

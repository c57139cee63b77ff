package searcher

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/document"
	"github.com/dshills/lfind/internal/embedder"
	"github.com/dshills/lfind/internal/storage"
	"github.com/dshills/lfind/internal/vectorindex"
)

// Defaults for strategy selection
const (
	DefaultThreshold  = 1000
	DefaultOversample = 10
)

// Result is one ranked record
type Result struct {
	Record *storage.FileRecord
	Score  float64
}

// Strategy ranks candidates against a query. A nil candidate slice means
// "no structural restriction".
type Strategy interface {
	Search(ctx context.Context, query string, candidates []*storage.FileRecord, k int) ([]Result, error)
}

// Options tunes strategy selection. Zero values take the defaults.
type Options struct {
	Threshold  int
	Oversample int
}

func (o *Options) validate() error {
	if o.Threshold < 0 {
		return apperrors.Contract("searcher.New", "threshold must be positive, got %d", o.Threshold)
	}
	if o.Oversample < 0 {
		return apperrors.Contract("searcher.New", "oversample factor must be positive, got %d", o.Oversample)
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Oversample == 0 {
		o.Oversample = DefaultOversample
	}
	return nil
}

// Searcher picks the scoped strategy for small candidate sets and the
// post-filter strategy for large or absent ones
type Searcher struct {
	scoped    *Scoped
	post      *PostFilter
	threshold int
}

// New creates a Searcher. index is the persistent vector index and may be
// nil before anything has been embedded.
func New(store storage.Catalog, emb embedder.Embedder, index vectorindex.Index, builder *document.Builder, opts Options, logger *slog.Logger) (*Searcher, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		scoped:    NewScoped(emb, index, builder, logger),
		post:      NewPostFilter(store, emb, index, opts.Oversample),
		threshold: opts.Threshold,
	}, nil
}

// Threshold is the candidate count at which post-filtering takes over
func (s *Searcher) Threshold() int { return s.threshold }

// Select returns the strategy used for this candidate set
func (s *Searcher) Select(candidates []*storage.FileRecord) Strategy {
	if candidates != nil && len(candidates) < s.threshold {
		return s.scoped
	}
	return s.post
}

// Search ranks candidates with the selected strategy
func (s *Searcher) Search(ctx context.Context, query string, candidates []*storage.FileRecord, k int) ([]Result, error) {
	if err := checkK("searcher.Search", k); err != nil {
		return nil, err
	}
	return s.Select(candidates).Search(ctx, query, candidates, k)
}

func checkK(op string, k int) error {
	if k <= 0 {
		return apperrors.Contract(op, "k must be positive, got %d", k)
	}
	return nil
}

func embedQuery(ctx context.Context, emb embedder.Embedder, op, query string) ([]float32, error) {
	if query == "" {
		return nil, apperrors.Contract(op, "query cannot be empty")
	}
	e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Collaborator(op, err)
	}
	return e.Vector, nil
}

// sortResults orders by descending score, then ascending record id
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
}

func truncate(results []Result, k int) []Result {
	if len(results) > k {
		return results[:k]
	}
	return results
}

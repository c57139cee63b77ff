package searcher

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/dshills/lfind/internal/document"
	"github.com/dshills/lfind/internal/embedder"
	"github.com/dshills/lfind/internal/storage"
	"github.com/dshills/lfind/internal/vectorindex"
)

// Scoped builds a throwaway exact index over the candidates' vectors and ranks
// the whole candidate set
type Scoped struct {
	embedder embedder.Embedder
	index    vectorindex.Index
	builder  *document.Builder
	logger   *slog.Logger
}

// NewScoped creates the scoped strategy. Stored vectors are read from index
// when it supports lookups; everything else is re-embedded through builder.
func NewScoped(emb embedder.Embedder, index vectorindex.Index, builder *document.Builder, logger *slog.Logger) *Scoped {
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = document.NewBuilder(nil, 0, logger)
	}
	return &Scoped{embedder: emb, index: index, builder: builder, logger: logger}
}

func (s *Scoped) Search(ctx context.Context, query string, candidates []*storage.FileRecord, k int) ([]Result, error) {
	if err := checkK("searcher.Scoped", k); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	q, err := embedQuery(ctx, s.embedder, "searcher.Scoped", query)
	if err != nil {
		return nil, err
	}

	// Handles are insertion positions, so adding in id order makes the index's
	// handle tie-break an id tie-break
	ordered := make([]*storage.FileRecord, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	records, vectors, err := s.candidateVectors(ctx, ordered)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Result{}, nil
	}

	metric := vectorindex.MetricCosine
	if s.index != nil {
		metric = s.index.Metric()
	}
	scoped, err := vectorindex.NewFlat(s.embedder.Dimension(), metric)
	if err != nil {
		return nil, err
	}
	if _, err := scoped.Add(ctx, vectors); err != nil {
		return nil, err
	}

	hits, err := scoped.Search(ctx, q, len(records))
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i] = Result{Record: records[hit.Handle], Score: hit.Score}
	}
	sortResults(results)
	return truncate(results, k), nil
}

// candidateVectors returns the records that have a vector, in input order,
// alongside their vectors. Failures for individual records skip them.
func (s *Scoped) candidateVectors(ctx context.Context, candidates []*storage.FileRecord) ([]*storage.FileRecord, [][]float32, error) {
	dim := s.embedder.Dimension()
	vectors := make([][]float32, len(candidates))

	var lookup vectorindex.Index
	if s.index != nil && s.index.Dimension() == dim {
		lookup = s.index
	}

	type pending struct {
		pos  int
		text string
	}
	var missing []pending

	for i, rec := range candidates {
		if lookup != nil && rec.EmbeddingID != nil {
			if v, ok := lookup.Lookup(*rec.EmbeddingID); ok {
				vectors[i] = v
				continue
			}
		}

		doc, err := s.builder.Build(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			if !errors.Is(err, document.ErrNotEmbeddable) {
				s.logger.Debug("skipping candidate", slog.String("path", rec.AbsolutePath), slog.String("error", err.Error()))
			}
			continue
		}
		missing = append(missing, pending{pos: i, text: doc.Text})
	}

	for start := 0; start < len(missing); start += embedder.DefaultBatchSize {
		end := start + embedder.DefaultBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.text
		}
		resp, err := s.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			s.logger.Warn("embedding candidates failed, skipping batch",
				slog.Int("count", len(batch)), slog.String("error", err.Error()))
			continue
		}
		for j, p := range batch {
			if j < len(resp.Embeddings) && resp.Embeddings[j] != nil {
				vectors[p.pos] = resp.Embeddings[j].Vector
			}
		}
	}

	records := make([]*storage.FileRecord, 0, len(candidates))
	kept := make([][]float32, 0, len(candidates))
	for i, v := range vectors {
		if len(v) != dim {
			continue
		}
		records = append(records, candidates[i])
		kept = append(kept, v)
	}
	return records, kept, nil
}

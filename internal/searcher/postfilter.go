package searcher

import (
	"context"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/embedder"
	"github.com/dshills/lfind/internal/storage"
	"github.com/dshills/lfind/internal/vectorindex"
)

// PostFilter searches the persistent index for k × oversample neighbours and
// keeps those in the candidate set. It can return fewer than k results; the
// search is never widened.
type PostFilter struct {
	store      storage.Catalog
	embedder   embedder.Embedder
	index      vectorindex.Index
	oversample int
}

func NewPostFilter(store storage.Catalog, emb embedder.Embedder, index vectorindex.Index, oversample int) *PostFilter {
	if oversample <= 0 {
		oversample = DefaultOversample
	}
	return &PostFilter{store: store, embedder: emb, index: index, oversample: oversample}
}

func (p *PostFilter) Search(ctx context.Context, query string, candidates []*storage.FileRecord, k int) ([]Result, error) {
	if err := checkK("searcher.PostFilter", k); err != nil {
		return nil, err
	}
	if candidates != nil && len(candidates) == 0 {
		return []Result{}, nil
	}
	if p.index == nil || p.index.Count() == 0 {
		return []Result{}, nil
	}

	q, err := embedQuery(ctx, p.embedder, "searcher.PostFilter", query)
	if err != nil {
		return nil, err
	}

	hits, err := p.index.Search(ctx, q, k*p.oversample)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	handles := make([]int64, len(hits))
	for i, hit := range hits {
		handles[i] = hit.Handle
	}
	records, err := p.store.GetByVectorHandles(ctx, handles, "")
	if err != nil {
		return nil, apperrors.Store("searcher.PostFilter", err)
	}

	byHandle := make(map[int64]*storage.FileRecord, len(records))
	for _, rec := range records {
		if rec.EmbeddingID != nil {
			byHandle[*rec.EmbeddingID] = rec
		}
	}

	var allowed map[int64]struct{}
	if candidates != nil {
		allowed = make(map[int64]struct{}, len(candidates))
		for _, c := range candidates {
			allowed[c.ID] = struct{}{}
		}
	}

	results := make([]Result, 0, k)
	for _, hit := range hits {
		rec, ok := byHandle[hit.Handle]
		if !ok {
			// orphaned handle: the record was deleted or re-embedded
			continue
		}
		if allowed != nil {
			if _, ok := allowed[rec.ID]; !ok {
				continue
			}
		}
		results = append(results, Result{Record: rec, Score: hit.Score})
	}

	sortResults(results)
	return truncate(results, k), nil
}

package vectorindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"

	"github.com/dshills/lfind/internal/apperrors"
)

// HNSW parameters
const (
	DefaultM        = 16
	DefaultEfSearch = 64
	defaultMl       = 0.25
)

// HNSW is an approximate index backed by github.com/coder/hnsw. It serves
// cosine and l2; inner product has no distance function there.
type HNSW struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int64]
	dim    int
	metric Metric
	next   int64
}

// hnswMeta is saved beside the exported graph as <path>.meta
type hnswMeta struct {
	Dimension int
	Metric    Metric
	Next      int64
}

// NewHNSW creates an empty graph index
func NewHNSW(dim int, metric Metric) (*HNSW, error) {
	if dim <= 0 {
		return nil, apperrors.Contract("vectorindex.NewHNSW", "dimension must be positive, got %d", dim)
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if metric == MetricIP {
		return nil, apperrors.ContractWrap("vectorindex.NewHNSW",
			fmt.Errorf("%w: %s is not available for hnsw", ErrUnsupportedMetric, metric))
	}
	return &HNSW{graph: newGraph(metric), dim: dim, metric: metric}, nil
}

func newGraph(metric Metric) *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = DefaultM
	g.EfSearch = DefaultEfSearch
	g.Ml = defaultMl
	if metric == MetricL2 {
		g.Distance = hnsw.EuclideanDistance
	} else {
		g.Distance = hnsw.CosineDistance
	}
	return g
}

func (h *HNSW) Dimension() int { return h.dim }

func (h *HNSW) Metric() Metric { return h.metric }

func (h *HNSW) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len()
}

// Add inserts vectors under fresh sequential handles
func (h *HNSW) Add(ctx context.Context, vectors [][]float32) ([]int64, error) {
	for _, v := range vectors {
		if err := checkDimension("vectorindex.HNSW.Add", h.dim, v); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	handles := make([]int64, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		if h.metric == MetricCosine {
			vec = normalize(vec)
		}

		key := h.next
		h.next++
		h.graph.Add(hnsw.MakeNode(key, vec))
		handles[i] = key
	}
	return handles, nil
}

// Search returns up to k approximate nearest neighbours
func (h *HNSW) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := checkK("vectorindex.HNSW.Search", k); err != nil {
		return nil, err
	}
	if err := checkDimension("vectorindex.HNSW.Search", h.dim, query); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := query
	if h.metric == MetricCosine {
		q = normalize(query)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		return []Hit{}, nil
	}

	nodes := h.graph.Search(q, k)
	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		distance := float64(h.graph.Distance(q, node.Value))
		score := 1 - distance
		if h.metric == MetricL2 {
			score = l2Score(distance)
		}
		hits = append(hits, Hit{Handle: node.Key, Score: score})
	}
	sortHits(hits)
	return hits, nil
}

// Lookup returns a copy of the stored (normalised, for cosine) vector
func (h *HNSW) Lookup(handle int64) ([]float32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	vec, ok := h.graph.Lookup(handle)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Save writes the handle counter to path.meta and then exports the graph to
// path, both atomically. A save torn between the two leaves a counter ahead
// of the graph, which only skips handles and never reuses one.
func (h *HNSW) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := writeAtomic(path+".meta", func(file *os.File) error {
		return gob.NewEncoder(file).Encode(hnswMeta{
			Dimension: h.dim,
			Metric:    h.metric,
			Next:      h.next,
		})
	}); err != nil {
		return err
	}

	return writeAtomic(path, func(file *os.File) error {
		w := bufio.NewWriter(file)
		if err := h.graph.Export(w); err != nil {
			return fmt.Errorf("failed to export graph: %w", err)
		}
		return w.Flush()
	})
}

// Load replaces the graph with a saved one of the same dimension and metric
func (h *HNSW) Load(path string) error {
	meta, err := readHNSWMeta(path + ".meta")
	if err != nil {
		return err
	}
	if meta.Dimension != h.dim {
		return apperrors.ContractWrap("vectorindex.HNSW.Load", ErrDimensionMismatch{Expected: h.dim, Got: meta.Dimension})
	}
	if meta.Metric != h.metric {
		return apperrors.Contract("vectorindex.HNSW.Load", "index was built with metric %s, configured %s", meta.Metric, h.metric)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	graph := newGraph(h.metric)
	// Import needs an io.ByteReader
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = graph
	h.next = meta.Next
	return nil
}

func readHNSWMeta(path string) (*hnswMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index metadata: %w", err)
	}
	defer func() { _ = file.Close() }()

	var meta hnswMeta
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode index metadata: %w", err)
	}
	return &meta, nil
}

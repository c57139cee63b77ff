package vectorindex

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/lfind/internal/apperrors"
)

// Flat is an exact brute-force index. Handles are insertion positions.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	metric  Metric
	vectors [][]float32
}

type flatFile struct {
	Dimension int
	Metric    Metric
	Vectors   [][]float32
}

// NewFlat creates an empty exact index. All three metrics are supported.
func NewFlat(dim int, metric Metric) (*Flat, error) {
	if dim <= 0 {
		return nil, apperrors.Contract("vectorindex.NewFlat", "dimension must be positive, got %d", dim)
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	return &Flat{dim: dim, metric: metric}, nil
}

func (f *Flat) Dimension() int { return f.dim }

func (f *Flat) Metric() Metric { return f.metric }

func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Add appends vectors and returns their handles. Nothing is added if any
// vector has the wrong dimension.
func (f *Flat) Add(ctx context.Context, vectors [][]float32) ([]int64, error) {
	for _, v := range vectors {
		if err := checkDimension("vectorindex.Flat.Add", f.dim, v); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	handles := make([]int64, len(vectors))
	for i, v := range vectors {
		stored := make([]float32, len(v))
		copy(stored, v)
		if f.metric == MetricCosine {
			stored = normalize(stored)
		}
		handles[i] = int64(len(f.vectors))
		f.vectors = append(f.vectors, stored)
	}
	return handles, nil
}

// Search scores every stored vector and returns the best k
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := checkK("vectorindex.Flat.Search", k); err != nil {
		return nil, err
	}
	if err := checkDimension("vectorindex.Flat.Search", f.dim, query); err != nil {
		return nil, err
	}

	q := query
	if f.metric == MetricCosine {
		q = normalize(query)
	}

	f.mu.RLock()
	hits := make([]Hit, 0, len(f.vectors))
	for i, v := range f.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				f.mu.RUnlock()
				return nil, err
			}
		}
		hits = append(hits, Hit{Handle: int64(i), Score: f.score(q, v)})
	}
	f.mu.RUnlock()

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *Flat) score(q, v []float32) float64 {
	switch f.metric {
	case MetricL2:
		return l2Score(euclidean(q, v))
	default:
		// cosine vectors are unit length, so the dot product is the similarity
		return dot(q, v)
	}
}

// Lookup returns a copy of the stored vector. Cosine vectors come back
// normalised.
func (f *Flat) Lookup(handle int64) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if handle < 0 || handle >= int64(len(f.vectors)) {
		return nil, false
	}
	out := make([]float32, f.dim)
	copy(out, f.vectors[handle])
	return out, true
}

// Save writes the index with gob via a temp file and rename
func (f *Flat) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return writeAtomic(path, func(file *os.File) error {
		return gob.NewEncoder(file).Encode(flatFile{
			Dimension: f.dim,
			Metric:    f.metric,
			Vectors:   f.vectors,
		})
	})
}

// Load replaces the contents with a saved index of the same dimension
func (f *Flat) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var data flatFile
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}
	if data.Dimension != f.dim {
		return apperrors.ContractWrap("vectorindex.Flat.Load", ErrDimensionMismatch{Expected: f.dim, Got: data.Dimension})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = data.Vectors
	if data.Metric != "" {
		f.metric = data.Metric
	}
	return nil
}

// writeAtomic creates path's directory, lets write fill a temp file and
// renames it into place
func writeAtomic(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := write(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/dshills/lfind/internal/apperrors"
)

// Metric names the similarity used to rank vectors
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricIP     Metric = "ip"
)

// Index kinds accepted by New
const (
	KindFlat = "flat"
	KindHNSW = "hnsw"
)

// ErrUnsupportedMetric is returned for metric names outside l2, ip and cosine,
// and for metrics an index kind cannot serve.
var ErrUnsupportedMetric = errors.New("unsupported similarity metric")

// ErrDimensionMismatch reports a vector whose length differs from the index
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Hit is one search result. Score is higher-is-better for every metric.
type Hit struct {
	Handle int64
	Score  float64
}

// Index stores vectors under opaque handles. There is no deletion.
type Index interface {
	Dimension() int
	Metric() Metric
	Add(ctx context.Context, vectors [][]float32) ([]int64, error)
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Save(path string) error
	Load(path string) error
	Count() int

	// Lookup returns a copy of the vector stored under handle
	Lookup(handle int64) ([]float32, bool)
}

// ParseMetric accepts "cosine", "l2" and "ip", case-insensitively
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricCosine:
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	case MetricIP:
		return MetricIP, nil
	default:
		return "", apperrors.ContractWrap("vectorindex.ParseMetric", fmt.Errorf("%w: %q", ErrUnsupportedMetric, s))
	}
}

// New creates an empty index of the given kind
func New(kind string, dim int, metric Metric) (Index, error) {
	switch strings.ToLower(kind) {
	case KindFlat, "":
		return NewFlat(dim, metric)
	case KindHNSW:
		return NewHNSW(dim, metric)
	default:
		return nil, apperrors.Contract("vectorindex.New", "unknown index kind %q", kind)
	}
}

// LoadIfExists loads the index saved at path. A missing file leaves index
// untouched and reports false. Dimension and metric conflicts are contract
// errors, anything else a store error.
func LoadIfExists(index Index, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := index.Load(path); err != nil {
		if apperrors.IsContract(err) {
			return false, err
		}
		return false, apperrors.Store("vectorindex.Load", err)
	}
	return true, nil
}

func checkDimension(op string, expected int, v []float32) error {
	if len(v) != expected {
		return apperrors.ContractWrap(op, ErrDimensionMismatch{Expected: expected, Got: len(v)})
	}
	return nil
}

func checkK(op string, k int) error {
	if k <= 0 {
		return apperrors.Contract(op, "k must be positive, got %d", k)
	}
	return nil
}

func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// l2Score maps a distance onto (0, 1]
func l2Score(distance float64) float64 {
	return 1 / (1 + distance)
}

// sortHits orders by descending score, then ascending handle
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Handle < hits[j].Handle
	})
}

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is one vector together with the model that produced it
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Key       string // cache key, see CacheKey
}

// EmbeddingRequest asks for the vector of one document or query text
type EmbeddingRequest struct {
	Text  string
	Model string // "" uses the provider's configured model
}

// Validate rejects empty text
func (r EmbeddingRequest) Validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// BatchEmbeddingRequest asks for the vectors of up to MaxBatchSize texts
type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// Validate rejects empty and oversized batches and empty texts
func (r BatchEmbeddingRequest) Validate() error {
	if len(r.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(r.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	for i, text := range r.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// BatchEmbeddingResponse holds one embedding per input text, in input order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns file titles, file contents and search queries into vectors
// of a fixed Dimension. The indexer and the searcher must share one, or at
// least one model, for their vectors to be comparable.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch embeds texts in one provider round trip where possible
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// DefaultCacheSize is the number of embeddings kept when no size is configured
const DefaultCacheSize = 10000

// CacheKey identifies text as embedded by model. Two models never share
// cached vectors.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is an LRU of embeddings by CacheKey. Re-syncing a tree re-embeds
// changed files only, but queries repeat, so the cache mostly serves the
// searcher. A nil *Cache caches nothing.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache creates a cache holding up to size embeddings
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Embedding](size)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{entries: entries}
}

// Get returns a private copy of the cached embedding
func (c *Cache) Get(key string) (*Embedding, bool) {
	if c == nil {
		return nil, false
	}
	emb, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return cloneEmbedding(emb), true
}

// Set stores a copy of emb
func (c *Cache) Set(key string, emb *Embedding) {
	if c == nil {
		return
	}
	c.entries.Add(key, cloneEmbedding(emb))
}

func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func cloneEmbedding(emb *Embedding) *Embedding {
	vector := make([]float32, len(emb.Vector))
	copy(vector, emb.Vector)
	out := *emb
	out.Vector = vector
	return &out
}

package embedder

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	key := CacheKey(DefaultOpenAIModel, "quarterly report")
	assert.Len(t, key, 64)
	assert.Equal(t, key, CacheKey(DefaultOpenAIModel, "quarterly report"))
	assert.NotEqual(t, key, CacheKey(DefaultOllamaModel, "quarterly report"), "scoped by model")
	assert.NotEqual(t, key, CacheKey(DefaultOpenAIModel, "quarterly reports"))
	// the separator keeps model and text apart
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestEmbeddingRequest_Validate(t *testing.T) {
	assert.NoError(t, EmbeddingRequest{Text: "report"}.Validate())
	assert.ErrorIs(t, EmbeddingRequest{}.Validate(), ErrEmptyText)
}

func TestBatchEmbeddingRequest_Validate(t *testing.T) {
	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = "text"
	}

	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{"valid batch", BatchEmbeddingRequest{Texts: []string{"a", "b"}}, nil},
		{"empty batch", BatchEmbeddingRequest{Texts: []string{}}, ErrInvalidInput},
		{"contains empty text", BatchEmbeddingRequest{Texts: []string{"a", ""}}, ErrInvalidInput},
		{"too large", BatchEmbeddingRequest{Texts: tooMany}, ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("nonexistent")
		assert.False(t, ok)

		cache.Set("hash1", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Key: "hash1"})
		got, ok := cache.Get("hash1")
		require.True(t, ok)
		assert.Equal(t, "hash1", got.Key)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("returned copies are isolated", func(t *testing.T) {
		cache := NewCache(3)
		original := &Embedding{Vector: []float32{1, 2, 3}}
		cache.Set("h", original)
		original.Vector[0] = 99

		got, _ := cache.Get("h")
		got.Vector[1] = 42

		again, _ := cache.Get("h")
		assert.Equal(t, []float32{1, 2, 3}, again.Vector)
	})

	t.Run("lru eviction", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("hash1", &Embedding{Key: "hash1"})
		cache.Set("hash2", &Embedding{Key: "hash2"})
		_, _ = cache.Get("hash1")
		cache.Set("hash3", &Embedding{Key: "hash3"})

		_, ok := cache.Get("hash2")
		assert.False(t, ok, "least recently used entry is evicted")
		_, ok = cache.Get("hash1")
		assert.True(t, ok)
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		var cache *Cache
		cache.Set("h", &Embedding{})
		_, ok := cache.Get("h")
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					key := CacheKey(DefaultLocalModel, string(rune('a'+id))+string(rune('a'+j%26)))
					cache.Set(key, &Embedding{Vector: []float32{float32(id), float32(j)}, Key: key})
					cache.Get(key)
				}
			}(i)
		}
		wg.Wait()
		assert.Greater(t, cache.Size(), 0)
	})
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (norm(a) * norm(b))
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	provider, err := NewLocalProvider(Config{CacheSize: 10})
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, ProviderLocal, provider.Provider())
	assert.Equal(t, LocalDimension, provider.Dimension())
	assert.Equal(t, DefaultLocalModel, provider.Model())

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "python script"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "python script"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		assert.Len(t, a.Vector, LocalDimension)
		assert.InDelta(t, 1.0, norm(a.Vector), 1e-5)
	})

	t.Run("shared words are closer", func(t *testing.T) {
		query, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "python code"})
		near, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a.py python code"})
		far, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "holiday photos"})
		assert.Greater(t, cosine(query.Vector, near.Vector), cosine(query.Vector, far.Vector))
	})

	t.Run("case insensitive", func(t *testing.T) {
		a, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Budget"})
		b, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "budget"})
		assert.Equal(t, a.Vector, b.Vector)
	})

	t.Run("punctuation only", func(t *testing.T) {
		emb, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "!!!"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, norm(emb.Vector), 1e-5)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		one, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "one"})
		assert.Equal(t, one.Vector, resp.Embeddings[0].Vector)
	})

	t.Run("custom dimension", func(t *testing.T) {
		small, err := NewLocalProvider(Config{Dimension: 8})
		require.NoError(t, err)
		emb, err := small.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, 8)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := provider.GenerateEmbedding(cctx, EmbeddingRequest{Text: "uncached text"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func vectorOf(dim int, v float32) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

// openAIServer answers /embeddings with one vector per input, valued by input
// position, listing entries in reverse order
func openAIServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"index":     i,
				"embedding": vectorOf(dim, float32(i+1)),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
	}))
}

func TestOpenAIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch with reordered response", func(t *testing.T) {
		var calls int32
		server := openAIServer(t, 4, &calls)
		defer server.Close()

		provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Dimension: 4, CacheSize: 10})
		require.NoError(t, err)
		defer provider.Close()

		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"first", "second"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, vectorOf(4, 1), resp.Embeddings[0].Vector)
		assert.Equal(t, vectorOf(4, 2), resp.Embeddings[1].Vector)
		assert.Equal(t, ProviderOpenAI, resp.Provider)
		assert.Equal(t, DefaultOpenAIModel, resp.Model)
	})

	t.Run("cache hit avoids API call", func(t *testing.T) {
		var calls int32
		server := openAIServer(t, 4, &calls)
		defer server.Close()

		provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Dimension: 4, CacheSize: 10})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached"})
		require.NoError(t, err)
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		// Only the miss goes to the API
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"cached", "fresh"}})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Equal(t, vectorOf(4, 1), resp.Embeddings[1].Vector, "fresh was the only text sent")

		// Another model never reuses these vectors
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached", Model: "text-embedding-3-large"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached", Model: "text-embedding-3-large"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		var calls int32
		server := openAIServer(t, 3, &calls)
		defer server.Close()

		provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Dimension: 4})
		require.NoError(t, err)
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, ErrProviderFailed)
	})

	t.Run("metadata", func(t *testing.T) {
		provider, err := NewOpenAIProvider(Config{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, provider.Provider())
		assert.Equal(t, OpenAIDimension, provider.Dimension())
		assert.Equal(t, DefaultOpenAIModel, provider.Model())

		large, err := NewOpenAIProvider(Config{APIKey: "k", Model: "text-embedding-3-large"})
		require.NoError(t, err)
		assert.Equal(t, 3072, large.Dimension())
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewOpenAIProvider(Config{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestOllamaProvider(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embeddings[i] = vectorOf(OllamaDimension, 0.5)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "embeddings": embeddings})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "notes"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, OllamaDimension)
	assert.Equal(t, DefaultOllamaModel, gotModel)
	assert.Equal(t, ProviderOllama, emb.Provider)
}

func TestRetryLogic(t *testing.T) {
	ctx := context.Background()

	t.Run("retry on server error", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"embeddings": [][]float32{vectorOf(2, 1)},
			})
		}))
		defer server.Close()

		provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Dimension: 2})
		require.NoError(t, err)
		provider.retry = fastRetry()

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "bad model", http.StatusBadRequest)
		}))
		defer server.Close()

		provider, err := NewOllamaProvider(Config{BaseURL: server.URL})
		require.NoError(t, err)
		provider.retry = fastRetry()

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("exhausted retries", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		provider, err := NewOllamaProvider(Config{BaseURL: server.URL})
		require.NoError(t, err)
		provider.retry = fastRetry()

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failure", func(t *testing.T) {
		callCount := 0
		result, err := retryWithBackoff(ctx, fastRetry(), func() (string, error) {
			callCount++
			if callCount < 2 {
				return "", fmt.Errorf("transient error")
			}
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, callCount)
	})

	t.Run("exponential backoff timing", func(t *testing.T) {
		config := RetryConfig{
			MaxRetries: 3,
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			Multiplier: 2.0,
		}
		start := time.Now()
		_, err := retryWithBackoff(ctx, config, func() (int, error) {
			return 0, errors.New("always fails")
		})
		assert.Error(t, err)
		// 10ms + 20ms of backoff between three attempts
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("rate limited is retried", func(t *testing.T) {
		assert.True(t, retryable(&StatusError{Code: http.StatusTooManyRequests}))
		assert.False(t, retryable(&StatusError{Code: http.StatusUnauthorized}))
		assert.True(t, retryable(errors.New("connection reset")))
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		callCount := 0
		_, err := retryWithBackoff(cctx, fastRetry(), func() (int, error) {
			callCount++
			cancel()
			return 0, errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, callCount)
	})
}

func TestRateLimiter(t *testing.T) {
	var calls int32
	server := openAIServer(t, 2, &calls)
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Dimension: 2, RequestsPerSecond: 20})
	require.NoError(t, err)
	require.NotNil(t, provider.limiter)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: fmt.Sprintf("t%d", i)})
		require.NoError(t, err)
	}
	// Burst of one, then 50ms per request
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

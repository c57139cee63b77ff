// Package embedder turns text into vectors for the file index.
//
// Three providers are available:
//
//   - openai: any OpenAI-compatible /embeddings endpoint (default model
//     text-embedding-3-small, 1536 dimensions)
//   - ollama: a local Ollama server's /api/embed (default model
//     nomic-embed-text, 768 dimensions)
//   - local: offline feature hashing (384 dimensions), deterministic
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "ollama",
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "quarterly report 2024 pdf",
//	})
//
// # Batch Processing
//
// GenerateBatch accepts up to MaxBatchSize texts and returns embeddings in
// input order. Cached texts are served from the cache and only the misses
// are sent to the provider.
//
// # Provider Selection
//
// NewFromEnv picks a provider from the environment:
//
//  1. LFIND_EMBEDDING_PROVIDER, if set
//  2. openai, if OPENAI_API_KEY is set
//  3. local otherwise
//
// # Errors
//
// HTTP providers retry server errors and rate limiting with exponential
// backoff. Once retries are exhausted the error wraps ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // the provider is down; callers degrade rather than abort
//	}
//
// Client errors (4xx other than 429) are not retried.
package embedder

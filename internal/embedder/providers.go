package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-hash"

	// Default endpoints
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaBaseURL = "http://localhost:11434"

	// Dimensions
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	DefaultTimeout = 30 * time.Second
)

// apiCall sends texts to a provider and returns one vector per text
type apiCall func(ctx context.Context, texts []string, model string) ([][]float32, error)

// remote holds what the HTTP providers share: caching, rate limiting and
// retry around a provider-specific API call
type remote struct {
	name       string
	model      string
	baseURL    string
	apiKey     string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	cache      *Cache
	call       apiCall
}

func newRemote(name string, cfg Config, defaultModel, defaultURL string, defaultDim int) *remote {
	r := &remote{
		name:      name,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		retry:     DefaultRetryConfig(),
		cache:     cfg.cache(),
	}
	if r.model == "" {
		r.model = defaultModel
	}
	if r.baseURL == "" {
		r.baseURL = defaultURL
	}
	if r.dimension <= 0 {
		r.dimension = defaultDim
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.httpClient = &http.Client{Timeout: timeout}
	if cfg.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return r
}

func (r *remote) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := r.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

func (r *remote) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = r.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if emb, ok := r.cache.Get(CacheKey(model, text)); ok {
			embeddings[i] = emb
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		vectors, err := retryWithBackoff(ctx, r.retry, func() ([][]float32, error) {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			return r.call(ctx, texts, model)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, r.name, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts",
				ErrProviderFailed, r.name, len(vectors), len(texts))
		}

		for j, i := range missing {
			if len(vectors[j]) != r.dimension {
				return nil, fmt.Errorf("%w: %s returned dimension %d, expected %d",
					ErrProviderFailed, r.name, len(vectors[j]), r.dimension)
			}
			emb := &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  r.name,
				Model:     model,
				Key:       CacheKey(model, req.Texts[i]),
			}
			r.cache.Set(emb.Key, emb)
			embeddings[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   r.name,
		Model:      model,
	}, nil
}

// postJSON posts body to url and decodes the JSON response into out
func (r *remote) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *remote) Dimension() int {
	return r.dimension
}

func (r *remote) Provider() string {
	return r.name
}

func (r *remote) Model() string {
	return r.model
}

func (r *remote) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder against an OpenAI-compatible
// /embeddings endpoint
type OpenAIProvider struct {
	*remote
}

// NewOpenAIProvider creates a new OpenAI embedder. An API key is required
// unless a custom base URL points at a server that doesn't need one.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	dim := OpenAIDimension
	if d, ok := knownOpenAIDimensions[cfg.Model]; ok {
		dim = d
	}

	p := &OpenAIProvider{remote: newRemote(ProviderOpenAI, cfg, DefaultOpenAIModel, DefaultOpenAIBaseURL, dim)}
	p.call = p.callAPI
	return p, nil
}

var knownOpenAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := o.postJSON(ctx, o.baseURL+"/embeddings", reqBody, &apiResp); err != nil {
		return nil, err
	}

	// The API may return entries out of order; index says where each belongs
	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

// OllamaProvider implements Embedder against Ollama's /api/embed endpoint
type OllamaProvider struct {
	*remote
}

// NewOllamaProvider creates an embedder backed by a local Ollama server
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	p := &OllamaProvider{remote: newRemote(ProviderOllama, cfg, DefaultOllamaModel, DefaultOllamaBaseURL, OllamaDimension)}
	p.call = p.callAPI
	return p, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := o.postJSON(ctx, o.baseURL+"/api/embed", reqBody, &apiResp); err != nil {
		return nil, err
	}
	return apiResp.Embeddings, nil
}

// LocalProvider embeds text offline with signed feature hashing: every
// lower-cased word adds ±1 to a dimension picked by its SHA-256. Texts sharing
// words get similar vectors, and the same text always gets the same vector.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cfg Config) (*LocalProvider, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dim,
		cache:     cfg.cache(),
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(l.model, req.Text)
	if emb, ok := l.cache.Get(key); ok {
		return emb, nil
	}

	emb := &Embedding{
		Vector:    hashEmbedding(req.Text, l.dimension),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Key:       key,
	}
	l.cache.Set(key, emb)
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

func hashEmbedding(text string, dim int) []float32 {
	vector := make([]float32, dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := sha256.Sum256([]byte(w))
		idx := binary.LittleEndian.Uint32(h[:4]) % uint32(dim)
		if h[4]&1 == 0 {
			vector[idx]++
		} else {
			vector[idx]--
		}
	}

	if len(words) == 0 {
		// No words (punctuation only): expand the text hash instead
		for block := 0; block*32 < dim; block++ {
			var seed [4]byte
			binary.LittleEndian.PutUint32(seed[:], uint32(block))
			h := sha256.Sum256(append([]byte(text), seed[:]...))
			for i := 0; i < 32 && block*32+i < dim; i++ {
				vector[block*32+i] = float32(h[i])/127.5 - 1
			}
		}
	}

	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

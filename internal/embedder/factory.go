package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables
const (
	EnvProvider     = "LFIND_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Dimension         int // 0 uses the provider default
	CacheSize         int // 0 disables caching
	RequestsPerSecond float64
	Timeout           time.Duration
}

func (c Config) cache() *Cache {
	if c.CacheSize <= 0 {
		return nil
	}
	return NewCache(c.CacheSize)
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. LFIND_EMBEDDING_PROVIDER (openai, ollama, local)
// 2. OPENAI_API_KEY selects openai
// 3. Default to local
func NewFromEnv() (Embedder, error) {
	cfg := Config{
		Provider:  DetectProvider(),
		APIKey:    os.Getenv(EnvOpenAIAPIKey),
		BaseURL:   os.Getenv(EnvOllamaHost),
		CacheSize: DefaultCacheSize,
	}
	if cfg.Provider != ProviderOllama {
		cfg.BaseURL = ""
	}
	return New(cfg)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(cfg)
	case ProviderOllama:
		return NewOllamaProvider(cfg)
	case ProviderLocal, "":
		return NewLocalProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

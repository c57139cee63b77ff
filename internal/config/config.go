// Package config loads lfind settings from YAML files and LFIND_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/lfind/internal/embedder"
	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/internal/llm"
	"github.com/dshills/lfind/internal/pipeline"
	"github.com/dshills/lfind/internal/searcher"
	"github.com/dshills/lfind/internal/tree"
	"github.com/dshills/lfind/internal/vectorindex"
)

// ProjectFile is the per-directory config file name
const ProjectFile = ".lfind.yaml"

// Config represents the complete lfind configuration
type Config struct {
	Index      IndexConfig      `yaml:"index" json:"index"`
	Tree       TreeConfig       `yaml:"tree" json:"tree"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// IndexConfig configures the catalog, the vector index and sync passes
type IndexConfig struct {
	DBPath             string   `yaml:"db_path" json:"db_path"`
	VectorPath         string   `yaml:"vector_path" json:"vector_path"`
	VectorIndex        string   `yaml:"vector_index" json:"vector_index"` // hnsw or flat
	Metric             string   `yaml:"metric" json:"metric"`             // cosine, l2 or ip
	IgnorePatterns     []string `yaml:"ignore_patterns" json:"ignore_patterns"`
	IncludeDirectories bool     `yaml:"include_directories" json:"include_directories"`
	Workers            int      `yaml:"workers" json:"workers"`
	BatchSize          int      `yaml:"batch_size" json:"batch_size"`
	MaxChars           int      `yaml:"max_chars" json:"max_chars"`
	CheckpointSize     int      `yaml:"checkpoint_size" json:"checkpoint_size"`
}

// TreeConfig configures tree rendering
type TreeConfig struct {
	MaxEntries       int  `yaml:"max_entries" json:"max_entries"`
	IncludeEmptyDirs bool `yaml:"include_empty_dirs" json:"include_empty_dirs"`
}

// SearchConfig configures the search pipeline.
// ScopedThreshold and OversampleFactor tune the vector search strategy.
// HistoryLimit caps the in-memory search history.
type SearchConfig struct {
	TopK             int `yaml:"top_k" json:"top_k"`
	ScopedThreshold  int `yaml:"scoped_threshold" json:"scoped_threshold"`
	OversampleFactor int `yaml:"oversample_factor" json:"oversample_factor"`
	HistoryLimit     int `yaml:"history_limit" json:"history_limit"`
}

// EmbeddingsConfig configures the embedding provider
type EmbeddingsConfig struct {
	Provider          string        `yaml:"provider" json:"provider"`
	Model             string        `yaml:"model" json:"model"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	APIKey            string        `yaml:"api_key,omitempty" json:"-"`
	Dimension         int           `yaml:"dimension" json:"dimension"`
	CacheSize         int           `yaml:"cache_size" json:"cache_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// ModelConfig describes one language model endpoint
type ModelConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	APIKey   string `yaml:"api_key,omitempty" json:"-"`
}

// LLMConfig configures the default and hard language models
type LLMConfig struct {
	Default           ModelConfig   `yaml:"default" json:"default"`
	Hard              ModelConfig   `yaml:"hard" json:"hard"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
}

// ServerConfig configures the front ends and logging
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"` // stdio or http
	HTTPAddr  string `yaml:"http_addr" json:"http_addr"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"` // auto, json or text
	LogFile   string `yaml:"log_file" json:"log_file"`
}

// NewConfig returns a configuration holding every default
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Index: IndexConfig{
			DBPath:         filepath.Join(dataDir, "metadata.db"),
			VectorPath:     filepath.Join(dataDir, "vectors.hnsw"),
			VectorIndex:    vectorindex.KindHNSW,
			Metric:         string(vectorindex.MetricCosine),
			IgnorePatterns: []string{".*"},
			BatchSize:      200,
			MaxChars:       10000,
			CheckpointSize: indexer.DefaultCheckpointSize,
		},
		Tree: TreeConfig{
			MaxEntries: tree.DefaultMaxEntries,
		},
		Search: SearchConfig{
			TopK:             10,
			ScopedThreshold:  searcher.DefaultThreshold,
			OversampleFactor: searcher.DefaultOversample,
			HistoryLimit:     pipeline.DefaultHistoryLimit,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  embedder.ProviderLocal,
			CacheSize: embedder.DefaultCacheSize,
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Default: ModelConfig{
				Provider: llm.ProviderOllama,
				Model:    llm.DefaultModel,
				BaseURL:  llm.DefaultBaseURL,
			},
			Hard: ModelConfig{
				Provider: llm.ProviderOpenAI,
				Model:    llm.DefaultHardModel,
				BaseURL:  llm.OpenAIBaseURL,
			},
			Timeout: llm.DefaultTimeout,
		},
		Server: ServerConfig{
			Transport: "stdio",
			HTTPAddr:  "127.0.0.1:7700",
			LogLevel:  "info",
			LogFormat: "auto",
		},
	}
}

// DefaultDataDir is $XDG_DATA_HOME/lfind, or ~/.local/share/lfind
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "lfind")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lfind")
	}
	return filepath.Join(home, ".local", "share", "lfind")
}

// UserConfigPath is $XDG_CONFIG_HOME/lfind/config.yaml, or
// ~/.config/lfind/config.yaml
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lfind", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "lfind", "config.yaml")
	}
	return filepath.Join(home, ".config", "lfind", "config.yaml")
}

// Load applies configuration in order of increasing precedence:
//  1. Defaults
//  2. User config (UserConfigPath)
//  3. Project config (.lfind.yaml in the working directory)
//  4. explicitPath, which must exist when given
//  5. Environment variables (LFIND_*)
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadOptional(UserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if wd, err := os.Getwd(); err == nil {
		if err := cfg.loadOptional(filepath.Join(wd, ProjectFile)); err != nil {
			return nil, fmt.Errorf("failed to load project config: %w", err)
		}
	}
	if explicitPath != "" {
		if err := cfg.LoadYAML(explicitPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadOptional(path string) error {
	err := c.LoadYAML(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// LoadYAML overlays the keys present in the file at path onto c
func (c *Config) LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file, creating parents
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"LFIND_DB_PATH":            &c.Index.DBPath,
		"LFIND_VECTOR_PATH":        &c.Index.VectorPath,
		"LFIND_VECTOR_INDEX":       &c.Index.VectorIndex,
		"LFIND_METRIC":             &c.Index.Metric,
		embedder.EnvProvider:       &c.Embeddings.Provider,
		"LFIND_EMBEDDING_MODEL":    &c.Embeddings.Model,
		"LFIND_EMBEDDING_BASE_URL": &c.Embeddings.BaseURL,
		"LFIND_LLM_PROVIDER":       &c.LLM.Default.Provider,
		"LFIND_LLM_MODEL":          &c.LLM.Default.Model,
		"LFIND_LLM_BASE_URL":       &c.LLM.Default.BaseURL,
		"LFIND_HARD_MODEL":         &c.LLM.Hard.Model,
		"LFIND_TRANSPORT":          &c.Server.Transport,
		"LFIND_HTTP_ADDR":          &c.Server.HTTPAddr,
		"LFIND_LOG_LEVEL":          &c.Server.LogLevel,
		"LFIND_LOG_FORMAT":         &c.Server.LogFormat,
		"LFIND_LOG_FILE":           &c.Server.LogFile,
	}
	for env, field := range strs {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"LFIND_TOP_K":             &c.Search.TopK,
		"LFIND_SCOPED_THRESHOLD":  &c.Search.ScopedThreshold,
		"LFIND_OVERSAMPLE_FACTOR": &c.Search.OversampleFactor,
		"LFIND_WORKERS":           &c.Index.Workers,
		"LFIND_CHECKPOINT_SIZE":   &c.Index.CheckpointSize,
		"LFIND_HISTORY_LIMIT":     &c.Search.HistoryLimit,
	}
	for env, field := range ints {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, v, err)
		}
		*field = n
	}
	return nil
}

// expandPaths resolves a leading "~/" in file paths
func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Index.DBPath, &c.Index.VectorPath, &c.Server.LogFile} {
		*p = expandHome(*p)
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks the configuration for values no component accepts
func (c *Config) Validate() error {
	metric, err := vectorindex.ParseMetric(c.Index.Metric)
	if err != nil {
		return fmt.Errorf("index.metric: %w", err)
	}
	switch c.Index.VectorIndex {
	case vectorindex.KindFlat:
	case vectorindex.KindHNSW:
		if metric == vectorindex.MetricIP {
			return fmt.Errorf("index.metric %q is not supported by the hnsw index", metric)
		}
	default:
		return fmt.Errorf("index.vector_index must be 'hnsw' or 'flat', got %q", c.Index.VectorIndex)
	}
	if c.Index.DBPath == "" {
		return errors.New("index.db_path must not be empty")
	}
	for _, p := range c.Index.IgnorePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("index.ignore_patterns: invalid pattern %q", p)
		}
	}

	nonNegative := map[string]int{
		"index.workers":            c.Index.Workers,
		"index.batch_size":         c.Index.BatchSize,
		"index.max_chars":          c.Index.MaxChars,
		"index.checkpoint_size":    c.Index.CheckpointSize,
		"tree.max_entries":         c.Tree.MaxEntries,
		"search.top_k":             c.Search.TopK,
		"search.scoped_threshold":  c.Search.ScopedThreshold,
		"search.oversample_factor": c.Search.OversampleFactor,
		"search.history_limit":     c.Search.HistoryLimit,
		"embeddings.dimension":     c.Embeddings.Dimension,
		"embeddings.cache_size":    c.Embeddings.CacheSize,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderOllama:
	default:
		return fmt.Errorf("embeddings.provider must be 'local', 'openai' or 'ollama', got %q", c.Embeddings.Provider)
	}
	for name, m := range map[string]ModelConfig{"llm.default": c.LLM.Default, "llm.hard": c.LLM.Hard} {
		switch strings.ToLower(m.Provider) {
		case "", llm.ProviderOllama, llm.ProviderOpenAI:
		default:
			return fmt.Errorf("%s.provider must be 'ollama' or 'openai', got %q", name, m.Provider)
		}
	}

	switch strings.ToLower(c.Server.Transport) {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got %q", c.Server.Transport)
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}
	switch strings.ToLower(c.Server.LogFormat) {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("server.log_format must be 'auto', 'json' or 'text', got %q", c.Server.LogFormat)
	}
	return nil
}

// EmbedderConfig converts the embeddings section for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:          c.Embeddings.Provider,
		Model:             c.Embeddings.Model,
		BaseURL:           c.Embeddings.BaseURL,
		APIKey:            c.Embeddings.APIKey,
		Dimension:         c.Embeddings.Dimension,
		CacheSize:         c.Embeddings.CacheSize,
		RequestsPerSecond: c.Embeddings.RequestsPerSecond,
		Timeout:           c.Embeddings.Timeout,
	}
}

// LLMConfigs converts the llm section for llm.NewService
func (c *Config) LLMConfigs() (def, hard llm.Config) {
	conv := func(m ModelConfig) llm.Config {
		return llm.Config{
			Provider:          m.Provider,
			Model:             m.Model,
			BaseURL:           m.BaseURL,
			APIKey:            m.APIKey,
			Timeout:           c.LLM.Timeout,
			RequestsPerSecond: c.LLM.RequestsPerSecond,
		}
	}
	return conv(c.LLM.Default), conv(c.LLM.Hard)
}

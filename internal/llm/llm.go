package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/lfind/internal/apperrors"
)

// Providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Defaults for the two configured clients
const (
	DefaultModel     = "qwen2.5:14b-instruct-q6_K"
	DefaultBaseURL   = "http://localhost:11434/v1"
	DefaultHardModel = "gpt-4o"
	OpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultTimeout   = 60 * time.Second

	// EnvOpenAIAPIKey is read when an openai client has no key configured
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	maxResponseSize = 1 << 20
)

// SystemPrompt frames every file search request
const SystemPrompt = "You are a file search assistant that helps find relevant files based on natural language queries."

var (
	ErrNotConfigured = errors.New("language model not configured")
	ErrRequestFailed = errors.New("language model request failed")
)

// Client picks the relevant names out of a list of candidate file names
type Client interface {
	Complete(ctx context.Context, query string, filenames []string) ([]string, error)
}

// Config describes one chat-completions endpoint
type Config struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
// Ollama serves one under /v1, so the same client covers both providers.
type OpenAIClient struct {
	provider   string
	model      string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAIClient validates cfg and builds a client. The openai provider needs
// an API key, from cfg or OPENAI_API_KEY.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderOllama
	}

	c := &OpenAIClient{
		provider: provider,
		model:    cfg.Model,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
	}

	switch provider {
	case ProviderOllama:
		if c.model == "" {
			c.model = DefaultModel
		}
		if c.baseURL == "" {
			c.baseURL = DefaultBaseURL
		}
		if c.apiKey == "" {
			c.apiKey = "ollama"
		}
	case ProviderOpenAI:
		if c.model == "" {
			c.model = DefaultHardModel
		}
		if c.baseURL == "" {
			c.baseURL = OpenAIBaseURL
		}
		if c.apiKey == "" {
			c.apiKey = os.Getenv(EnvOpenAIAPIKey)
		}
		if c.apiKey == "" {
			return nil, fmt.Errorf("%w: %s not set", ErrNotConfigured, EnvOpenAIAPIKey)
		}
	default:
		return nil, apperrors.Contract("llm.NewOpenAIClient", "unknown provider %q", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

func (c *OpenAIClient) Provider() string { return c.provider }

func (c *OpenAIClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the search prompt and returns the names from the reply. An
// empty candidate list returns nothing without calling the model.
func (c *OpenAIClient) Complete(ctx context.Context, query string, filenames []string) ([]string, error) {
	if len(filenames) == 0 {
		return nil, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	content, err := c.chat(ctx, []chatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: BuildPrompt(query, filenames)},
	})
	if err != nil {
		return nil, apperrors.Collaborator("llm.Complete", err)
	}
	return ParseResponse(content), nil
}

func (c *OpenAIClient) chat(ctx context.Context, messages []chatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s %d: %s", ErrRequestFailed, c.provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// BuildPrompt lists the candidate names and asks for the matching ones back
func BuildPrompt(query string, filenames []string) string {
	var b strings.Builder
	b.WriteString("Given the following list of files:\n\n")
	b.WriteString(strings.Join(filenames, "\n"))
	fmt.Fprintf(&b, "\n\nFind files that best match this search query: %q\n\n", query)
	b.WriteString("Instructions:\n")
	b.WriteString("- Return ONLY the matching filenames, one per line\n")
	b.WriteString("- Return each filename exactly as listed, including any directory prefix\n")
	b.WriteString("- Do not include any explanations or additional text\n")
	b.WriteString("- If no files match, return an empty response")
	return b.String()
}

// ParseResponse splits a reply into names, dropping blank lines, list
// bullets, numbering and code fences
func ParseResponse(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			continue
		}
		for _, bullet := range []string{"- ", "* ", "• "} {
			line = strings.TrimPrefix(line, bullet)
		}
		line = trimNumbering(line)
		line = strings.Trim(strings.TrimSpace(line), "`\"'")
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

// trimNumbering drops a leading "1. " or "2) ". "2024.pdf" is left alone.
func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

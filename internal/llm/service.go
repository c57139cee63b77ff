package llm

import (
	"context"
	"log/slog"
)

// Service holds the everyday model and an optional stronger one
type Service struct {
	Default Client
	Hard    Client
	logger  *slog.Logger
}

// NewService builds both clients. A hard client that can't be configured
// (typically a missing API key) is left nil and Select falls back to the
// default one.
func NewService(defaultCfg, hardCfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def, err := NewOpenAIClient(defaultCfg)
	if err != nil {
		return nil, err
	}

	s := &Service{Default: def, logger: logger}

	if hardCfg.Provider == "" {
		hardCfg.Provider = ProviderOpenAI
	}
	hard, err := NewOpenAIClient(hardCfg)
	if err != nil {
		logger.Debug("hard model unavailable", "provider", hardCfg.Provider, "error", err)
	} else {
		s.Hard = hard
	}
	return s, nil
}

// Select returns the hard client when asked for and configured, otherwise
// the default one
func (s *Service) Select(hard bool) Client {
	if hard {
		if s.Hard != nil {
			return s.Hard
		}
		s.logger.Warn("hard model requested but not configured, using default model")
	}
	return s.Default
}

// Complete runs a file search on the selected client
func (s *Service) Complete(ctx context.Context, query string, filenames []string, hard bool) ([]string, error) {
	client := s.Select(hard)
	if c, ok := client.(*OpenAIClient); ok {
		s.logger.Debug("llm file search", "provider", c.Provider(), "model", c.Model(), "candidates", len(filenames))
	}
	return client.Complete(ctx, query, filenames)
}

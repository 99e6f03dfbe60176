// Package provider builds the embedding and generation clients selected in
// the configuration.
package provider

import (
	"fmt"

	"go-pdf-qa/config"
	"go-pdf-qa/provider/anthropic"
	"go-pdf-qa/provider/openai"
	"go-pdf-qa/rag"
)

// NewEmbedder returns the configured embedder, rate limited when
// embedding.rate_limit is set.
func NewEmbedder(cfg config.ProviderConfig) (rag.Embedder, error) {
	var (
		e   rag.Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderSimple:
		e = rag.NewSimpleEmbedder()
	case config.ProviderOpenAI:
		e, err = openai.NewEmbedder(openai.Config{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		err = fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	if cfg.RateLimit > 0 {
		e = NewRateLimitedEmbedder(e, cfg.RateLimit, cfg.Concurrency)
	}
	return e, nil
}

// NewGenerator returns the configured generator.
func NewGenerator(cfg config.ProviderConfig) (rag.Generator, error) {
	var (
		g   rag.Generator
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g, err = openai.NewGenerator(openai.Config{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: cfg.MaxRetries,
		})
	case config.ProviderAnthropic:
		g, err = anthropic.NewGenerator(anthropic.Config{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		err = fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	if cfg.RateLimit > 0 {
		g = NewRateLimitedGenerator(g, cfg.RateLimit, 1)
	}
	return g, nil
}

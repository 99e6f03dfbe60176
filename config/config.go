// Package config loads the service configuration from defaults, an optional
// config.toml, a .env file and PDFQA_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderSimple    = "simple"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Upload     UploadConfig    `mapstructure:"upload"`
	Chunk      ChunkConfig     `mapstructure:"chunk"`
	Retrieval  RetrievalConfig `mapstructure:"retrieval"`
	Embedding  ProviderConfig  `mapstructure:"embedding"`
	Generation ProviderConfig  `mapstructure:"generation"`
	Log        LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Listen     string `mapstructure:"listen"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type UploadConfig struct {
	// MaxBytes is the upload size ceiling.
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type ChunkConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// ProviderConfig configures one hosted model, either for embeddings or for
// generation.
type ProviderConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`

	// Timeout bounds every single call to the provider.
	Timeout time.Duration `mapstructure:"timeout"`

	// Concurrency is the number of chunks embedded in parallel.
	Concurrency int `mapstructure:"concurrency"`

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`

	MaxTokens  int64 `mapstructure:"max_tokens"`
	MaxRetries int   `mapstructure:"max_retries"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// APIKey reads the key from the configured environment variable.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// applyProviderDefaults fills the key variable per provider.
func (c *Config) applyProviderDefaults() {
	for _, p := range []*ProviderConfig{&c.Embedding, &c.Generation} {
		if p.APIKeyEnv != "" {
			continue
		}
		switch p.Provider {
		case ProviderOpenAI:
			p.APIKeyEnv = "OPENAI_API_KEY"
		case ProviderAnthropic:
			p.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
}

// Validate checks the values that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Chunk.MaxLength <= 0 {
		return fmt.Errorf("chunk.max_length must be positive, got %d", c.Chunk.MaxLength)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderSimple:
	default:
		return fmt.Errorf("unsupported embedding.provider %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported generation.provider %q", c.Generation.Provider)
	}

	if c.Embedding.Timeout <= 0 || c.Generation.Timeout <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	if c.Embedding.Concurrency <= 0 {
		return fmt.Errorf("embedding.concurrency must be positive, got %d", c.Embedding.Concurrency)
	}
	return nil
}

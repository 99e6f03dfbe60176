package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PDFQA_SERVER_LISTEN.
const EnvPrefix = "PDFQA"

// InitViper creates and returns a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the caller)
//  2. Environment variables (PDFQA_SERVER_LISTEN, PDFQA_EMBEDDING_MODEL, ...),
//     including those loaded from .env
//  3. config.toml values (path, or ./config.toml when path is empty)
//  4. Defaults from NewDefaultConfig()
func InitViper(path string) (*viper.Viper, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setViperDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper decodes v into a validated Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load is InitViper followed by FromViper.
func Load(path string) (*Config, error) {
	v, err := InitViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)

	v.SetDefault("upload.max_bytes", d.Upload.MaxBytes)
	v.SetDefault("chunk.max_length", d.Chunk.MaxLength)
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)

	for key, p := range map[string]ProviderConfig{"embedding": d.Embedding, "generation": d.Generation} {
		v.SetDefault(key+".provider", p.Provider)
		v.SetDefault(key+".model", p.Model)
		v.SetDefault(key+".base_url", p.BaseURL)
		v.SetDefault(key+".api_key_env", p.APIKeyEnv)
		v.SetDefault(key+".timeout", p.Timeout)
		v.SetDefault(key+".concurrency", p.Concurrency)
		v.SetDefault(key+".rate_limit", p.RateLimit)
		v.SetDefault(key+".max_tokens", p.MaxTokens)
		v.SetDefault(key+".max_retries", p.MaxRetries)
	}

	v.SetDefault("log.debug", d.Log.Debug)
}

package config

import "time"

const (
	defaultListen     = ":5000"
	defaultCORSOrigin = "*"

	defaultMaxUploadBytes = 30 << 20
	defaultChunkLength    = 1000
	defaultTopK           = 3

	defaultEmbeddingProvider    = ProviderOpenAI
	defaultEmbeddingModel       = "text-embedding-3-small"
	defaultEmbeddingTimeout     = 30 * time.Second
	defaultEmbeddingConcurrency = 4

	defaultGenerationProvider = ProviderOpenAI
	defaultGenerationTimeout  = 60 * time.Second
	defaultGenerationTokens   = 1024

	defaultMaxRetries = 2
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:     defaultListen,
			CORSOrigin: defaultCORSOrigin,
		},
		Upload: UploadConfig{
			MaxBytes: defaultMaxUploadBytes,
		},
		Chunk: ChunkConfig{
			MaxLength: defaultChunkLength,
		},
		Retrieval: RetrievalConfig{
			TopK: defaultTopK,
		},
		Embedding: ProviderConfig{
			Provider:    defaultEmbeddingProvider,
			Model:       defaultEmbeddingModel,
			Timeout:     defaultEmbeddingTimeout,
			Concurrency: defaultEmbeddingConcurrency,
			MaxRetries:  defaultMaxRetries,
		},
		Generation: ProviderConfig{
			Provider:   defaultGenerationProvider,
			Timeout:    defaultGenerationTimeout,
			MaxTokens:  defaultGenerationTokens,
			MaxRetries: defaultMaxRetries,
		},
	}
}

// Package openai implements rag.Embedder and rag.Generator on top of the
// OpenAI API (or any OpenAI-compatible endpoint).
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"go-pdf-qa/rag"
)

const (
	// DefaultEmbeddingModel is used when Config.Model is empty for an Embedder.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultChatModel is used when Config.Model is empty for a Generator.
	DefaultChatModel = "gpt-4o-mini"

	defaultMaxTokens = 1024
)

// Config holds the connection settings shared by Embedder and Generator.
type Config struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a local compatible server.
	BaseURL string

	Model string

	// MaxTokens caps generated answers. Ignored by the Embedder.
	MaxTokens int64

	// MaxRetries is passed to the SDK. Negative means SDK default.
	MaxRetries int
}

func newClient(cfg Config) (openai.Client, error) {
	if cfg.APIKey == "" {
		return openai.Client{}, fmt.Errorf("openai: missing API key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return openai.NewClient(opts...), nil
}

// Embedder wraps the embeddings endpoint.
type Embedder struct {
	client openai.Client
	model  string
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}, nil
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, rag.WrapProviderError(rag.ErrEmbedding, "openai embeddings", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embedding", rag.ErrEmbedding)
	}
	return resp.Data[0].Embedding, nil
}

// Generator wraps the chat completions endpoint.
type Generator struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewGenerator(cfg Config) (*Generator, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	g := &Generator{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}
	if g.model == "" {
		g.model = DefaultChatModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	return g, nil
}

// Generate sends prompt as a single user message and returns the reply text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(g.maxTokens),
	})
	if err != nil {
		return "", rag.WrapProviderError(rag.ErrGeneration, "openai chat completion", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", rag.ErrGeneration)
	}
	return completion.Choices[0].Message.Content, nil
}

var (
	_ rag.Embedder  = (*Embedder)(nil)
	_ rag.Generator = (*Generator)(nil)
)

// Package anthropic implements rag.Generator with the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"go-pdf-qa/rag"
)

const defaultMaxTokens = 1024

// Config configures the Generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int64
	MaxRetries int
}

// Generator answers prompts with a Claude model.
type Generator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	g := &Generator{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.ModelClaude3_7SonnetLatest,
		maxTokens: cfg.MaxTokens,
	}
	if cfg.Model != "" {
		g.model = anthropic.Model(cfg.Model)
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	return g, nil
}

// Generate sends prompt as one user turn and joins the text blocks of the reply.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", rag.WrapProviderError(rag.ErrGeneration, "anthropic messages", err)
	}

	var b strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	return b.String(), nil
}

var _ rag.Generator = (*Generator)(nil)

package provider

import (
	"context"

	"golang.org/x/time/rate"

	"go-pdf-qa/rag"
)

// RateLimitedEmbedder waits on a token bucket before every call.
type RateLimitedEmbedder struct {
	next    rag.Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows perSecond calls with a burst of burst.
func NewRateLimitedEmbedder(next rag.Embedder, perSecond float64, burst int) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{next: next, limiter: newLimiter(perSecond, burst)}
}

func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, rag.WrapProviderError(rag.ErrEmbedding, "rate limiter", err)
	}
	return e.next.Embed(ctx, text)
}

// RateLimitedGenerator waits on a token bucket before every call.
type RateLimitedGenerator struct {
	next    rag.Generator
	limiter *rate.Limiter
}

func NewRateLimitedGenerator(next rag.Generator, perSecond float64, burst int) *RateLimitedGenerator {
	return &RateLimitedGenerator{next: next, limiter: newLimiter(perSecond, burst)}
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", rag.WrapProviderError(rag.ErrGeneration, "rate limiter", err)
	}
	return g.next.Generate(ctx, prompt)
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

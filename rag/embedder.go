package rag

import "context"

// Embedder turns text into a fixed-length vector. Every call on one
// Embedder must return the same dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator answers a prompt with a hosted model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor reads the plain text out of an uploaded document.
type Extractor interface {
	ExtractText(data []byte) (string, error)
}

// Simple deterministic embedder based on rune counts, for running without
// a provider key.
type SimpleEmbedder struct{}

func NewSimpleEmbedder() *SimpleEmbedder {
	return &SimpleEmbedder{}
}

func (e *SimpleEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 4D vector: length, vowels, consonants, spaces
	var length, vowels, consonants, spaces float64
	for _, r := range text {
		length++
		switch {
		case r == 'a' || r == 'e' || r == 'i' || r == 'o' || r == 'u' ||
			r == 'A' || r == 'E' || r == 'I' || r == 'O' || r == 'U':
			vowels++
		case r == ' ':
			spaces++
		default:
			consonants++
		}
	}
	return []float64{length, vowels, consonants, spaces}, nil
}

package qa

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// textExtractor treats the upload bytes as the document text.
type textExtractor struct {
	err error

	// blank simulates a scanned document with no text layer.
	blank bool
}

func (e *textExtractor) ExtractText(data []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if e.blank {
		return "", nil
	}
	return string(data), nil
}

// letterEmbedder maps text onto counts of the letters A, B and C, so chunks
// made of different letters are orthogonal.
type letterEmbedder struct {
	mu    sync.Mutex
	calls int

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Block makes calls for matching text wait until the context ends.
	Block string

	// Gate, when set, is received from before every call returns.
	Gate chan struct{}

	// Jitter sleeps a few random milliseconds so calls finish out of order.
	Jitter bool
}

func (e *letterEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.FailOn != "" && text == e.FailOn {
		return nil, errors.New("mock embedding failure for: " + text)
	}
	if e.Block != "" && strings.Contains(text, e.Block) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.Jitter {
		time.Sleep(time.Duration(rand.IntN(4)) * time.Millisecond)
	}
	if e.Gate != nil {
		select {
		case <-e.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []float64{
		float64(strings.Count(text, "A")),
		float64(strings.Count(text, "B")),
		float64(strings.Count(text, "C")),
		1,
	}, nil
}

func (e *letterEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// stubbornEmbedder ignores its context entirely.
type stubbornEmbedder struct {
	release chan struct{}
}

func (e *stubbornEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	<-e.release
	return []float64{1}, nil
}

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *recordingGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// ragged returns a vector whose length depends on the text.
type raggedEmbedder struct{}

func (raggedEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	return make([]float64, 1+len(text)%2), nil
}

package rag

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"
)

// DefaultTopK is the number of chunks returned when a query asks for none.
const DefaultTopK = 3

// Store holds the chunks of the currently loaded document. Readers always see
// one complete generation: Replace builds the next one aside and publishes
// it with a single pointer swap.
type Store struct {
	current atomic.Pointer[Generation]
	counter atomic.Uint64

	// beforePublish runs after a generation is built and before it is
	// published. Tests use it to hold a Replace half way.
	beforePublish func()
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Generation{Chunks: []Chunk{}})
	return s
}

// Replace discards the current generation and installs docs as the next
// one, with ids 0..n-1 in input order. The store is left untouched if the
// documents do not share one embedding dimension.
func (s *Store) Replace(source string, docs []Document) (Generation, error) {
	dim := 0
	if len(docs) > 0 {
		dim = len(docs[0].Embedding)
	}

	chunks := make([]Chunk, len(docs))
	for i, d := range docs {
		if len(d.Embedding) != dim {
			return Generation{}, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
				ErrDimensionMismatch, i, len(d.Embedding), dim)
		}
		chunks[i] = Chunk{
			ID:        i,
			Text:      d.Text,
			Embedding: slices.Clone(d.Embedding),
		}
	}

	gen := &Generation{
		Number:    s.counter.Add(1),
		Source:    source,
		Chunks:    chunks,
		Dimension: dim,
		CreatedAt: time.Now(),
	}

	if s.beforePublish != nil {
		s.beforePublish()
	}
	s.current.Store(gen)

	return *gen, nil
}

// Current returns the live generation. Callers must not modify its chunks.
func (s *Store) Current() Generation {
	return *s.current.Load()
}

func (s *Store) Len() int {
	return len(s.current.Load().Chunks)
}

// Query ranks every stored chunk against queryEmbedding and returns the
// topK best, highest similarity first. Equal scores keep id order.
func (s *Store) Query(queryEmbedding []float64, topK int) ([]SearchResult, error) {
	gen := s.current.Load()
	if len(gen.Chunks) == 0 {
		return []SearchResult{}, nil
	}
	if len(queryEmbedding) != gen.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			ErrDimensionMismatch, len(queryEmbedding), gen.Dimension)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	type ranked struct {
		SearchResult
		key float64
	}
	results := make([]ranked, 0, len(gen.Chunks))
	for _, ch := range gen.Chunks {
		score, err := Cosine(queryEmbedding, ch.Embedding)
		if err != nil {
			return nil, err
		}
		key := score
		if !finite(score) {
			key = math.Inf(-1)
		}
		results = append(results, ranked{
			SearchResult: SearchResult{ID: ch.ID, Text: ch.Text, Similarity: score},
			key:          key,
		})
	}

	slices.SortStableFunc(results, func(a, b ranked) int {
		return cmp.Compare(b.key, a.key)
	})

	topK = min(topK, len(results))
	out := make([]SearchResult, topK)
	for i := range out {
		out[i] = results[i].SearchResult
	}
	return out, nil
}

package rag

import "time"

// Chunk of the loaded document
type Chunk struct {
	ID        int
	Text      string
	Embedding []float64
}

// Document is a chunk before it gets an id in the store.
type Document struct {
	Text      string
	Embedding []float64
}

// SearchResult is one ranked chunk
type SearchResult struct {
	ID         int     `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Generation is one complete, immutable version of the store.
type Generation struct {
	Number    uint64
	Source    string
	Chunks    []Chunk
	Dimension int
	CreatedAt time.Time
}

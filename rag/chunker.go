package rag

import "unicode/utf8"

// DefaultChunkSize is the window length used when none is given.
const DefaultChunkSize = 1000

// ChunkText splits text into contiguous windows of at most maxLength
// characters. Windows are raw slices of the input: nothing is trimmed and
// words may be cut in half.
func ChunkText(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/maxLength+1)
	start, runes := 0, 0
	for i := range text {
		if runes == maxLength {
			chunks = append(chunks, text[start:i])
			start, runes = i, 0
		}
		runes++
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}

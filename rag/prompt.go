package rag

import (
	"fmt"
	"strings"
)

const promptTemplate = "You are an AI assistant. Answer using this PDF context when relevant. " +
	"If the context does not contain the answer, say that the document has no relevant information.\n\n" +
	"Context:\n%s\n\nQuestion:\n%s"

// BuildContext joins the retrieved chunk texts in rank order.
func BuildContext(results []SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Text
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt assembles the generator prompt. An empty context is allowed.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}

// Citations returns the ids of results in rank order.
func Citations(results []SearchResult) []int {
	ids := make([]int, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

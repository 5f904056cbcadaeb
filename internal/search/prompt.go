package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/pkg/utils"
)

const (
	// NoContextAnswer is returned when no chunk passes the score threshold.
	NoContextAnswer = "I couldn't find any relevant information in the uploaded documents to answer your question. " +
		"Please make sure you've uploaded relevant documents or try rephrasing your question."

	fallbackPrefix = "Based on the uploaded documents:\n\n"

	promptTemplate = "Based on the following context, please answer the question. " +
		"If the context doesn't contain enough information, say so clearly.\n\n" +
		"Context:\n%s\n\nQuestion: %s\n\nAnswer:"
)

// BuildContext joins the texts of the first n hits with blank lines.
func BuildContext(hits []models.ScoredChunk, n int) string {
	if n > len(hits) || n <= 0 {
		n = len(hits)
	}
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = hits[i].Text
	}
	return strings.Join(texts, "\n\n")
}

// BuildPrompt fills the answering prompt.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// FallbackAnswer quotes the first maxChars characters of the context.
func FallbackAnswer(contextText string, maxChars int) string {
	return fallbackPrefix + utils.Prefix(contextText, maxChars) + "..."
}

// FormatScores renders scores with three decimals.
func FormatScores(hits []models.ScoredChunk) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = fmt.Sprintf("%.3f", h.Score)
	}
	return out
}

// Sources returns the distinct source filenames in first-seen order.
func Sources(hits []models.ScoredChunk) []string {
	seen := make(map[string]bool, len(hits))
	var out []string
	for _, h := range hits {
		name := h.Metadata.Filename
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

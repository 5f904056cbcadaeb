// Package indexer provides text chunking and the document ingest pipeline.
package indexer

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyInput is returned when there is no text to chunk.
	ErrEmptyInput = errors.New("empty text provided for chunking")
	// ErrNoChunks is returned when chunking produced nothing usable.
	ErrNoChunks = errors.New("no valid chunks could be created")
)

// sentenceCharsEstimate converts an overlap budget in characters into a
// number of sentences.
const sentenceCharsEstimate = 50

// Chunker splits text into overlapping, size-bounded segments built from
// whole sentences. Sizes are measured in characters.
type Chunker struct {
	maxChunkSize int
	overlapSize  int
}

// NewChunker creates a chunker with the given maximum chunk size and overlap budget.
func NewChunker(maxChunkSize, overlapSize int) *Chunker {
	return &Chunker{
		maxChunkSize: maxChunkSize,
		overlapSize:  overlapSize,
	}
}

// Chunk splits text using the chunker's limits.
func (c *Chunker) Chunk(text string) ([]string, error) {
	return Chunk(text, c.maxChunkSize, c.overlapSize)
}

// Chunk normalizes whitespace in text, splits it into sentences and greedily
// packs consecutive sentences into chunks of at most maxChunkSize characters.
// A sentence longer than maxChunkSize becomes a chunk of its own. Consecutive
// chunks share trailing sentences according to overlapSize.
func Chunk(text string, maxChunkSize, overlapSize int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	text = Preprocess(text)
	sentences := SplitSentences(text)

	var chunks []string
	for i := 0; i < len(sentences); {
		current, count := pack(sentences[i:], maxChunkSize)
		if count == 0 {
			current, count = sentences[i], 1
		}
		if current = strings.TrimSpace(current); current != "" {
			chunks = append(chunks, current)
		}
		i += advance(count, overlapSize)
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	return chunks, nil
}

// pack joins sentences with single spaces while the result fits in max
// characters and reports how many were consumed.
func pack(sentences []string, max int) (string, int) {
	var b strings.Builder
	length := 0
	count := 0
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if count > 0 {
			n++
		}
		if length+n > max {
			break
		}
		if count > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
		length += n
		count++
	}
	return b.String(), count
}

func advance(count, overlapSize int) int {
	if count <= 1 {
		return 1
	}
	overlap := min(count/2, overlapSize/sentenceCharsEstimate)
	overlap = max(1, overlap)
	return max(1, count-overlap)
}

// SplitSentences splits normalized text after '.', '!' or '?' when followed by
// whitespace; the punctuation stays with its sentence. If no such boundary
// exists the text is split on ". ", and failing that returned whole.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 1; i < len(text); i++ {
		if !isSpace(text[i]) || !isTerminal(text[i-1]) {
			continue
		}
		sentences = append(sentences, text[start:i])
		j := i
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		start = j
		i = j
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	if len(sentences) > 1 {
		return sentences
	}
	if parts := strings.Split(text, ". "); len(parts) > 1 {
		return parts
	}
	return []string{text}
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

package indexer

import "strings"

// Preprocess collapses every run of Unicode whitespace, newlines included,
// into one space and trims both ends.
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

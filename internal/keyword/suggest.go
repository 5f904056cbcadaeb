package keyword

import (
	"strings"
	"unicode/utf8"
)

const (
	maxSuggestDistance = 2
	minSuggestRunes    = 4
)

// Suggest replaces query terms missing from the chunk text dictionary with
// the closest indexed term. Candidates within two edits are ranked by
// frequency / (distance + 1), ties broken alphabetically.
func (b *BleveIndex) Suggest(query string) (string, bool) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return query, false
	}
	dict, err := b.termFrequencies()
	if err != nil || len(dict) == 0 {
		return query, false
	}

	changed := false
	out := make([]string, len(terms))
	for i, term := range terms {
		out[i] = term
		if _, ok := dict[term]; ok || utf8.RuneCountInString(term) < minSuggestRunes {
			continue
		}
		if best, ok := closestTerm(term, dict); ok {
			out[i] = best
			changed = true
		}
	}
	if !changed {
		return query, false
	}
	return strings.Join(out, " "), true
}

func closestTerm(term string, dict map[string]uint64) (string, bool) {
	var (
		best      string
		bestScore float64
	)
	n := utf8.RuneCountInString(term)
	for cand, freq := range dict {
		diff := utf8.RuneCountInString(cand) - n
		if diff > maxSuggestDistance || diff < -maxSuggestDistance {
			continue
		}
		d := editDistance(term, cand)
		if d > maxSuggestDistance {
			continue
		}
		score := float64(freq) / float64(d+1)
		if score > bestScore || (score == bestScore && cand < best) {
			best, bestScore = cand, score
		}
	}
	return best, best != ""
}

// termFrequencies reads the text field dictionary: term -> document count.
func (b *BleveIndex) termFrequencies() (map[string]uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	fd, err := b.index.FieldDict("text")
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	dict := make(map[string]uint64)
	for {
		entry, err := fd.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		dict[entry.Term] = entry.Count
	}
	return dict, nil
}

// editDistance is the Levenshtein distance over runes.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

package reconcile

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// MatchThreshold is the minimum similarity score at which an approximate
// match is accepted without human confirmation.
const MatchThreshold = 0.70

// Similarity scores two canonical strings in [0,1], 1 meaning identical.
// Pluggable so the edit-distance metric can be swapped without touching
// resolution control flow.
type Similarity func(a, b string) float64

// LevenshteinSimilarity is 1 - editDistance/maxLen over runes.
func LevenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

package reconcile

import "testing"

func TestLevenshteinSimilarity(t *testing.T) {
	cases := []struct {
		a, b     string
		expected float64
	}{
		{"sawit makmur", "sawit makmur", 1},
		{"", "", 1},
		{"abc", "", 0},
	}
	for _, tc := range cases {
		if got := LevenshteinSimilarity(tc.a, tc.b); got != tc.expected {
			t.Fatalf("LevenshteinSimilarity(%q, %q) expected %v, got %v", tc.a, tc.b, tc.expected, got)
		}
	}
}

func TestLevenshteinSimilarityThresholdBoundary(t *testing.T) {
	// One inserted char: distance 1 over max length 13.
	score := LevenshteinSimilarity("sawit makmur", "sawit makmurr")
	if score < MatchThreshold {
		t.Fatalf("one-char insertion scored %v, expected >= %v", score, MatchThreshold)
	}

	// Distance 3 over length 10 sits exactly on the 0.70 cutoff and must
	// still be accepted.
	at := LevenshteinSimilarity("abcdefghij", "abcxxxghij")
	if at < MatchThreshold {
		t.Fatalf("similarity %v at cutoff should pass threshold %v", at, MatchThreshold)
	}

	// Distance 4 over length 10 (0.60) falls below.
	below := LevenshteinSimilarity("abcdefghij", "abxxxxghij")
	if below >= MatchThreshold {
		t.Fatalf("similarity %v below cutoff should not pass threshold %v", below, MatchThreshold)
	}
}

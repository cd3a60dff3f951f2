package reconcile

import (
	"regexp"
	"strings"
)

var parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)

// Legal-entity prefixes seen in imported sheets (Indonesian company forms).
// Compared after lower-casing, trailing dots ignored.
var legalPrefixes = map[string]bool{
	"pt": true,
	"cv": true,
	"ud": true,
}

// Canonicalize reduces a free-text identifier to its comparison form:
// trim, drop parenthetical qualifiers, lower-case, collapse whitespace,
// strip leading legal-entity prefix tokens. Idempotent, never fails;
// garbage in means empty string out.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = parentheticalPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)

	fields := strings.Fields(s)
	// Stripping repeatedly (not just once) keeps the function idempotent
	// for inputs like "PT. CV Maju".
	for len(fields) > 1 && legalPrefixes[strings.TrimRight(fields[0], ".")] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

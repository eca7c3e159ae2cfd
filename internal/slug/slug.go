// Package slug derives URL identifiers from profile titles.
package slug

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// SuffixLen is the number of UUID characters appended to every slug.
const SuffixLen = 8

var (
	// Unicode space separators, \v and the BOM count as whitespace, not only RE2's ASCII \s.
	whitespace = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
	disallowed = regexp.MustCompile(`[^a-z0-9-]`)
)

// Base lower-cases title, collapses each whitespace run into a single hyphen
// and drops every character outside [a-z0-9-]. Non-ASCII letters are removed,
// not transliterated.
func Base(title string) string {
	s := strings.ToLower(title)
	s = whitespace.ReplaceAllString(s, "-")
	return disallowed.ReplaceAllString(s, "")
}

// Generate returns Base(title) followed by a hyphen and a random suffix.
// Collisions are not checked here; the profiles table enforces uniqueness.
func Generate(title string) string {
	return Base(title) + "-" + uuid.New().String()[:SuffixLen]
}

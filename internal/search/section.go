package search

import (
	"regexp"
	"strings"
)

// sectionPattern finds a section number introduced by "section", "sec" or "ipc",
// or standing at the very start of the query. An optional single letter suffix
// covers ids such as 498A.
var sectionPattern = regexp.MustCompile(`(?:section|sec|ipc|^)\s*(\d+[a-z]?)`)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// ExtractSectionID returns the first explicit section reference in query,
// upper-cased, and whether one was found.
func ExtractSectionID(query string) (string, bool) {
	m := sectionPattern.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// IsNumericQuery reports whether the trimmed query is nothing but digits.
func IsNumericQuery(query string) bool {
	return digitsOnly.MatchString(strings.TrimSpace(query))
}

package tweets

import (
	"strings"
	"unicode"
)

// ValidUsername reports whether username has at least one non-space rune.
func ValidUsername(username string) bool {
	return !isBlank(username)
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

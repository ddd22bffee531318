package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases s and strips punctuation, keeping letters, marks,
// digits, underscores and whitespace. For ASCII input this matches the
// browser's /[^\w\s]/g filter.
func Normalize(s string) string {
	lowered := cases.Lower(language.Und).String(s)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

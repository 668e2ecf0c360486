// Package textnorm canonicalizes free text before it is vectorized.
//
// The same Normalize function is applied to corpus questions at fit time and
// to live queries at transform time.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text, replaces every non-word, non-space rune with a
// space, collapses whitespace runs and trims the result.
//
// Word runes are letters, numbers, combining marks and the underscore.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		if !isWordRune(r) {
			// punctuation and whitespace both collapse into one separator
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Tokens splits normalized text on whitespace. It returns an empty slice for
// empty input.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// NormalizeTokens is Tokens(Normalize(text)).
func NormalizeTokens(text string) []string {
	return Tokens(Normalize(text))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) || r == '_'
}

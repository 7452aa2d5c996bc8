// Package dedupe implements the fingerprinting core: shingle
// tokenization of OCR text and 64-bit SimHash fingerprints over the
// shingle stream.
package dedupe

import (
	"strings"
	"unicode"
)

// DefaultShingleWidth is the shingle width used when none is configured.
// Seven runes spans a typical word boundary in space-separated scripts.
const DefaultShingleWidth = 7

// Normalize lowercases text and strips every rune that is not a letter,
// digit, or underscore. The result is one contiguous run of word runes:
// OCR whitespace and punctuation noise cannot shift shingle alignment.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Shingles normalizes text and slides a window of width runes across it,
// advancing one rune at a time. Inputs shorter than width yield a single
// shingle holding the whole normalized text, so the result is never
// empty.
func Shingles(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	runes := []rune(Normalize(text))

	n := len(runes) - width + 1
	if n < 1 {
		n = 1
	}

	shingles := make([]string, 0, n)
	for i := 0; i < n; i++ {
		end := i + width
		if end > len(runes) {
			end = len(runes)
		}
		shingles = append(shingles, string(runes[i:end]))
	}
	return shingles
}

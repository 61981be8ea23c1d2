// Package textnorm folds free text into the form used for phrase and keyword
// comparison: trimmed, lower-cased, without diacritics, single-spaced.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes s for comparison. The original text must be kept by the
// caller when case matters (payloads, names).
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(folded), " ")
}

// Title title-cases s using Portuguese rules ("JOÃO da silva" -> "João Da Silva").
func Title(s string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.TrimSpace(s))
}

// ContainsAny reports the first needle (already folded) contained in folded.
func ContainsAny(folded string, needles []string) (string, bool) {
	for _, n := range needles {
		if n != "" && strings.Contains(folded, n) {
			return n, true
		}
	}
	return "", false
}

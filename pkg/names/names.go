// Package names extracts a contact's short name from self-introductions and
// from provider profile metadata.
package names

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harun/iattom/pkg/textnorm"
)

const (
	minNameLen   = 2
	maxNameLen   = 30
	maxNameWords = 3
)

var (
	// Introductions accepted in any letter case.
	looseIntro = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:meu nome [ée]|pode me chamar de|me chama de|me chame de|my name is|call me)\s+([\p{L}'’\- ]+)`)

	// Ambiguous introductions ("sou a favor", "I'm tired") only count when the
	// name itself starts with an upper-case letter.
	strictIntro = regexp.MustCompile(`(?:^|[^\p{L}])(?i:sou o|sou a|i'm|i’m|i am)\s+(\p{Lu}[\p{L}'’\-]*(?:\s+\p{Lu}[\p{L}'’\-]*)*)`)

	statusToken = regexp.MustCompile(`^(?i:hoje|today|ontem|yesterday)(?:[^\p{L}]+|$)`)
	dateToken   = regexp.MustCompile(`^\d{1,2}/\d{1,2}(?:/\d{2,4})?`)
	separators  = regexp.MustCompile(`[,\s]{2,}`)
)

// Words that end a name inside a sentence ("meu nome é Ana e eu ...").
var connectors = map[string]struct{}{
	"e": {}, "and": {}, "mas": {}, "but": {}, "que": {}, "por": {},
	"pois": {}, "porque": {}, "because": {}, "please": {}, "aqui": {},
	"quando": {}, "when": {}, "se": {}, "if": {}, "amanha": {}, "tomorrow": {},
}

// Words that cannot start a name. "me chama de novo", "pode me chamar de
// volta" and "call me back" are requests, not introductions.
var nonNames = map[string]struct{}{
	"novo": {}, "nova": {}, "volta": {}, "depois": {}, "logo": {}, "mais": {},
	"tarde": {}, "cedo": {}, "agora": {}, "amanha": {}, "hoje": {}, "ontem": {},
	"quando": {}, "sempre": {}, "nunca": {}, "ja": {}, "la": {}, "ai": {},
	"voce": {}, "vc": {}, "isso": {}, "aquilo": {}, "nada": {}, "ninguem": {},
	"um": {}, "uma": {}, "o": {}, "a": {}, "os": {}, "as": {}, "de": {}, "do": {},
	"da": {}, "pra": {}, "para": {}, "por": {}, "no": {}, "na": {}, "em": {},
	"back": {}, "later": {}, "again": {}, "now": {}, "soon": {}, "anytime": {},
	"whenever": {}, "tonight": {}, "the": {}, "an": {}, "up": {}, "when": {},
}

// FromText finds an explicit self-introduction in text and returns the
// title-cased name.
func FromText(text string) (string, bool) {
	if m := looseIntro.FindStringSubmatch(text); m != nil {
		if name, ok := cleanName(m[1]); ok {
			return name, true
		}
	}
	if m := strictIntro.FindStringSubmatch(text); m != nil {
		if name, ok := cleanName(m[1]); ok {
			return name, true
		}
	}
	return "", false
}

func cleanName(raw string) (string, bool) {
	var words []string
	for _, w := range strings.Fields(raw) {
		w = strings.Trim(w, "'’-")
		if w == "" {
			continue
		}
		folded := textnorm.Fold(w)
		if len(words) == 0 {
			if _, bad := nonNames[folded]; bad {
				return "", false
			}
		}
		if _, stop := connectors[folded]; stop {
			break
		}
		words = append(words, w)
		if len(words) == maxNameWords {
			break
		}
	}

	name := strings.Join(words, " ")
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return "", false
	}
	return textnorm.Title(name), true
}

// NormalizeDisplayName turns a provider profile name such as
// "Hoje, ✨ ana   paula" into a short usable name ("Ana"). It returns "" when
// nothing letter-like remains.
func NormalizeDisplayName(raw string) string {
	s := trimLeadingNonLetters(raw)
	s = dateToken.ReplaceAllString(s, "")
	s = trimLeadingNonLetters(s)
	s = statusToken.ReplaceAllString(s, "")
	s = strings.TrimLeftFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	s = strings.TrimSpace(separators.ReplaceAllString(s, " "))

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	first := strings.TrimRightFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) })
	if first == "" {
		return ""
	}
	return textnorm.Title(first)
}

// Digits survive so a leading date can still be recognized.
func trimLeadingNonLetters(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

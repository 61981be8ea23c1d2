// Package command recognizes structured commands in inbound text.
//
// Precedence is the order of the rule table: exact phrases are listed before
// prefix commands and the first matching rule wins.
package command

import (
	"fmt"
	"strings"

	"github.com/harun/iattom/pkg/textnorm"
)

// Kind identifies a structured command
type Kind string

const (
	KindHelp      Kind = "help"
	KindIdentity  Kind = "identity"
	KindFocus     Kind = "focus"
	KindReset     Kind = "reset"
	KindImage     Kind = "image"
	KindJournal   Kind = "journal"
	KindPDF       Kind = "pdf"
	KindDOCX      Kind = "docx"
	KindKnowledge Kind = "knowledge"
	KindSearch    Kind = "search"
	KindSummarize Kind = "summarize"
)

// Rule is one row of the command table. A rule matches either one of its
// exact Phrases or text starting with one of its Prefixes followed by a colon.
type Rule struct {
	Kind     Kind
	Phrases  []string
	Prefixes []string
}

// Match is a recognized command
type Match struct {
	Kind    Kind
	Payload string // original-case text after the first colon, trimmed
	// Prefixed is true for keyword: commands, which carry a payload
	Prefixed bool
}

// DefaultRules is the built-in command table in precedence order
func DefaultRules() []Rule {
	return []Rule{
		{Kind: KindHelp, Phrases: []string{"ajuda", "menu", "help", "comandos"}},
		{Kind: KindIdentity, Phrases: []string{
			"qual seu nome", "qual o seu nome", "quem e voce", "quem e vc",
			"what is your name", "who are you",
		}},
		{Kind: KindFocus, Phrases: []string{"foco", "pomodoro", "preciso de foco"}},
		{Kind: KindReset, Phrases: []string{"reset", "resetar"}},
		{Kind: KindImage, Prefixes: []string{"img", "imagem"}},
		{Kind: KindJournal, Prefixes: []string{"diário", "diario"}},
		{Kind: KindPDF, Prefixes: []string{"pdf"}},
		{Kind: KindDOCX, Prefixes: []string{"docx", "doc"}},
		{Kind: KindKnowledge, Prefixes: []string{"wiki", "saber"}},
		{Kind: KindSearch, Prefixes: []string{"buscar", "busca", "pesquisar"}},
		{Kind: KindSummarize, Prefixes: []string{"resumir", "resuma", "link"}},
	}
}

type compiledRule struct {
	kind     Kind
	phrases  map[string]struct{}
	prefixes []string
}

// Matcher classifies text against an ordered rule table
type Matcher struct {
	rules []Rule
	table []compiledRule
}

// NewMatcher folds the phrases and prefixes of rules. Empty tables and rules
// without any pattern are rejected.
func NewMatcher(rules []Rule) (*Matcher, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("command table cannot be empty")
	}

	m := &Matcher{rules: rules}
	for i, r := range rules {
		if r.Kind == "" {
			return nil, fmt.Errorf("command rule %d has no kind", i)
		}
		if len(r.Phrases) == 0 && len(r.Prefixes) == 0 {
			return nil, fmt.Errorf("command rule %s has no phrases or prefixes", r.Kind)
		}

		cr := compiledRule{kind: r.Kind, phrases: make(map[string]struct{}, len(r.Phrases))}
		for _, p := range r.Phrases {
			cr.phrases[textnorm.Fold(p)] = struct{}{}
		}
		for _, p := range r.Prefixes {
			p = strings.TrimSuffix(textnorm.Fold(p), ":")
			if p == "" {
				return nil, fmt.Errorf("command rule %s has an empty prefix", r.Kind)
			}
			cr.prefixes = append(cr.prefixes, p+":")
		}
		m.table = append(m.table, cr)
	}
	return m, nil
}

// Default returns a Matcher over DefaultRules
func Default() *Matcher {
	m, err := NewMatcher(DefaultRules())
	if err != nil {
		panic(err)
	}
	return m
}

// Match returns the first rule matching text
func (m *Matcher) Match(text string) (Match, bool) {
	folded := textnorm.Fold(text)
	if folded == "" {
		return Match{}, false
	}
	phrase := strings.TrimRight(folded, "?!. ")

	for _, r := range m.table {
		if _, ok := r.phrases[phrase]; ok {
			return Match{Kind: r.kind}, true
		}
		for _, p := range r.prefixes {
			if strings.HasPrefix(folded, p) {
				return Match{Kind: r.kind, Payload: payload(text), Prefixed: true}, true
			}
		}
	}
	return Match{}, false
}

// Rules returns a copy of the rule table in precedence order
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

func payload(text string) string {
	_, after, found := strings.Cut(text, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}

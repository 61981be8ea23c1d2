// Package trigger maps free text to at most one topical category by
// keyword membership.
package trigger

import (
	"fmt"

	"github.com/harun/iattom/pkg/textnorm"
)

// Category is a topical trigger
type Category string

const (
	Emotional    Category = "emotional"
	Productivity Category = "productivity"
	Study        Category = "study"
)

// Known reports whether c is a supported category
func (c Category) Known() bool {
	switch c {
	case Emotional, Productivity, Study:
		return true
	}
	return false
}

// Policy is the configurable part of classification: which categories are
// checked, in which order, and with which keywords. Keywords are substrings,
// so stems such as "desanim" match "desanimado" and "desanimada".
type Policy struct {
	Order    []Category            `json:"order" mapstructure:"order"`
	Keywords map[Category][]string `json:"keywords" mapstructure:"keywords"`
}

// DefaultPolicy checks emotional support first, then productivity, then study
func DefaultPolicy() Policy {
	return Policy{
		Order: []Category{Emotional, Productivity, Study},
		Keywords: map[Category][]string{
			Emotional:    {"triste", "desanim", "cansad", "ansios", "depress", "sem vontade", "sobrecarreg", "estress"},
			Productivity: {"organizar", "produtiv", "foco", "prioridade", "planejar", "agenda", "projeto", "procrast"},
			Study:        {"estudar", "prova", "concurso", "enem", "vestibular", "matéria", "resumo", "memoriz"},
		},
	}
}

// Validate checks that every ordered category is known, appears once and has keywords
func (p Policy) Validate() error {
	if len(p.Order) == 0 {
		return fmt.Errorf("trigger order cannot be empty")
	}
	seen := make(map[Category]bool, len(p.Order))
	for _, c := range p.Order {
		if !c.Known() {
			return fmt.Errorf("unknown trigger category: %s", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate trigger category: %s", c)
		}
		seen[c] = true

		empty := true
		for _, k := range p.Keywords[c] {
			if textnorm.Fold(k) != "" {
				empty = false
				break
			}
		}
		if empty {
			return fmt.Errorf("trigger category %s has no keywords", c)
		}
	}
	return nil
}

type rule struct {
	category Category
	keywords []string
}

// Classifier evaluates a Policy. It is immutable and safe for concurrent use.
type Classifier struct {
	policy Policy
	rules  []rule
}

// New validates p and folds its keywords
func New(p Policy) (*Classifier, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trigger policy: %w", err)
	}

	c := &Classifier{policy: p}
	for _, cat := range p.Order {
		r := rule{category: cat}
		for _, k := range p.Keywords[cat] {
			if f := textnorm.Fold(k); f != "" {
				r.keywords = append(r.keywords, f)
			}
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// Default returns a Classifier over DefaultPolicy
func Default() *Classifier {
	c, err := New(DefaultPolicy())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the first category in policy order whose keywords occur in text
func (c *Classifier) Classify(text string) (Category, bool) {
	folded := textnorm.Fold(text)
	if folded == "" {
		return "", false
	}
	for _, r := range c.rules {
		if _, ok := textnorm.ContainsAny(folded, r.keywords); ok {
			return r.category, true
		}
	}
	return "", false
}

// Policy returns the policy the classifier was built from
func (c *Classifier) Policy() Policy {
	return c.policy
}

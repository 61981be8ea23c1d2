package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/harun/iattom/pkg/delegate"
	"github.com/rs/zerolog"
)

const summaryPersona = "Você resume páginas da web em português do Brasil. " +
	"Responda com no máximo 5 frases curtas, sem inventar fatos que não estejam no texto."

const (
	maxPromptChars      = 8000
	extractiveSentences = 3
	minSentenceChars    = 20
	maxSummaryChars     = 600
)

// Summarizer produces a short summary of a linked page
type Summarizer struct {
	fetcher   *Fetcher
	responder delegate.Responder
	logger    zerolog.Logger
}

// NewSummarizer creates a Summarizer. responder may be nil, in which case
// summaries are extractive.
func NewSummarizer(fetcher *Fetcher, responder delegate.Responder, logger zerolog.Logger) *Summarizer {
	return &Summarizer{fetcher: fetcher, responder: responder, logger: logger}
}

// Summarize fetches rawURL and summarizes it
func (s *Summarizer) Summarize(ctx context.Context, rawURL string) (string, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	if strings.TrimSpace(page.Text) == "" {
		return "", ErrNotFound
	}

	if s.responder != nil {
		text := page.Text
		if utf8.RuneCountInString(text) > maxPromptChars {
			text = string([]rune(text)[:maxPromptChars])
		}
		prompt := fmt.Sprintf("Título: %s\nURL: %s\n\n%s", page.Title, page.URL, text)
		summary, err := s.responder.Generate(ctx, delegate.Request{Persona: summaryPersona, Text: prompt})
		if err != nil {
			s.logger.Warn().Err(err).Str("url", page.URL).Msg("Delegate summary failed, using extractive summary")
		}
		if summary = strings.TrimSpace(summary); summary != "" {
			return summary, nil
		}
	}

	return Extractive(page.Text, extractiveSentences), nil
}

var sentenceEnd = regexp.MustCompile(`[.!?…]+(\s+|$)`)

// Extractive returns the first n sentences of text that are long enough to be content
func Extractive(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	var out []string

	rest := text
	for len(out) < n && rest != "" {
		loc := sentenceEnd.FindStringIndex(rest)
		var sentence string
		if loc == nil {
			sentence, rest = rest, ""
		} else {
			sentence, rest = rest[:loc[1]], rest[loc[1]:]
		}
		sentence = strings.TrimSpace(sentence)
		if utf8.RuneCountInString(sentence) >= minSentenceChars {
			out = append(out, sentence)
		}
	}
	if len(out) == 0 {
		return truncate(text, maxSummaryChars)
	}
	return truncate(strings.Join(out, " "), maxSummaryChars)
}

func truncate(s string, max int) string {
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}

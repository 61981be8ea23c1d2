package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/iattom/internal/tracing"
	"github.com/harun/iattom/pkg/artifact"
	"github.com/harun/iattom/pkg/command"
	"github.com/harun/iattom/pkg/research"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const maxDocumentTitleRunes = 60

func (d *Dispatcher) runCommand(ctx context.Context, t *turn, m command.Match, logger zerolog.Logger) []Action {
	switch m.Kind {
	case command.KindHelp:
		return []Action{textAction(helpText)}
	case command.KindIdentity:
		return []Action{textAction(identityReply)}
	case command.KindFocus:
		return []Action{textAction(focusReply)}
	case command.KindReset:
		return d.reset(ctx, t, logger)
	case command.KindJournal:
		return d.journal(t, m.Payload)
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.ToolTimeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.Command",
		attribute.String("command", string(m.Kind)))
	defer span.End()

	var (
		actions []Action
		err     error
	)
	switch m.Kind {
	case command.KindImage:
		actions, err = d.image(ctx, m.Payload)
	case command.KindPDF:
		actions, err = d.document(ctx, artifact.FormatPDF, m.Payload)
	case command.KindDOCX:
		actions, err = d.document(ctx, artifact.FormatDOCX, m.Payload)
	case command.KindKnowledge:
		actions, err = d.knowledge(ctx, m.Payload)
	case command.KindSearch:
		actions, err = d.search(ctx, m.Payload)
	case command.KindSummarize:
		actions, err = d.summarize(ctx, m.Payload)
	default:
		actions = []Action{textAction(helpText)}
	}
	if err != nil {
		tracing.RecordError(span, err)
		logger.Warn().Err(err).Str("command", string(m.Kind)).Msg("Command failed")
	}
	return actions
}

func (d *Dispatcher) reset(ctx context.Context, t *turn, logger zerolog.Logger) []Action {
	if err := d.deps.Store.Delete(ctx, t.ev.ContactID); err != nil {
		logger.Error().Err(err).Msg("Failed to reset session")
		return []Action{textAction(resetFailedReply)}
	}
	t.effect = effectDeleted
	logger.Info().Msg("Session reset")
	return []Action{textAction(resetReply)}
}

func (d *Dispatcher) journal(t *turn, note string) []Action {
	if note == "" {
		last, ok := t.sess.LastJournal()
		if !ok {
			return []Action{textAction(journalEmpty)}
		}
		return []Action{textAction(fmt.Sprintf(journalLast, last.Text))}
	}
	t.sess.AppendJournal(t.now, note)
	t.changed()
	t.saveFailedReply = journalFailed
	return []Action{textAction(journalSaved)}
}

func (d *Dispatcher) image(ctx context.Context, prompt string) ([]Action, error) {
	if prompt == "" {
		return []Action{textAction(imageUsage)}, nil
	}
	if d.deps.Images == nil {
		return []Action{textAction(imageUnavailable)}, nil
	}
	url, err := d.deps.Images.Generate(ctx, prompt)
	if err != nil || url == "" {
		return []Action{textAction(imageFailed)}, err
	}
	return []Action{{Kind: ActionImage, URL: url, Caption: fmt.Sprintf(imageCaption, prompt)}}, nil
}

func (d *Dispatcher) document(ctx context.Context, format artifact.Format, payload string) ([]Action, error) {
	if payload == "" {
		return []Action{textAction(fmt.Sprintf(documentUsage, format))}, nil
	}
	if d.deps.Documents == nil {
		return []Action{textAction(documentUnavailable)}, nil
	}
	title, body := splitDocument(payload)
	doc, err := d.deps.Documents.CreateDocument(ctx, format, title, body)
	if errors.Is(err, artifact.ErrNoBaseURL) {
		return []Action{textAction(documentUnavailable)}, nil
	}
	if err != nil {
		return []Action{textAction(documentFailed)}, err
	}
	return []Action{
		textAction(fmt.Sprintf(documentReady, title)),
		{Kind: ActionDocument, URL: doc.URL, Filename: doc.Filename},
	}, nil
}

// splitDocument reads "title | body". Without a separator the first line,
// capped, becomes the title and the whole payload the body.
func splitDocument(payload string) (string, string) {
	if title, body, ok := strings.Cut(payload, "|"); ok {
		title, body = strings.TrimSpace(title), strings.TrimSpace(body)
		if title != "" && body != "" {
			return title, body
		}
		if title == "" {
			title = body
		}
		return truncateRunes(title, maxDocumentTitleRunes), title
	}
	title, _, _ := strings.Cut(payload, "\n")
	return truncateRunes(strings.TrimSpace(title), maxDocumentTitleRunes), payload
}

func (d *Dispatcher) knowledge(ctx context.Context, topic string) ([]Action, error) {
	if topic == "" {
		return []Action{textAction(knowledgeUsage)}, nil
	}
	if d.deps.Knowledge == nil {
		return []Action{textAction(researchUnavailable)}, nil
	}
	summary, err := d.deps.Knowledge.Lookup(ctx, topic)
	if errors.Is(err, research.ErrNotFound) {
		return []Action{textAction(fmt.Sprintf(knowledgeNotFound, topic))}, nil
	}
	if err != nil {
		return []Action{textAction(researchFailed)}, err
	}
	reply := "*" + summary.Title + "*\n" + summary.Extract
	if summary.URL != "" {
		reply += "\n" + summary.URL
	}
	return []Action{textAction(reply)}, nil
}

func (d *Dispatcher) search(ctx context.Context, query string) ([]Action, error) {
	if query == "" {
		return []Action{textAction(searchUsage)}, nil
	}
	if d.deps.Search == nil {
		return []Action{textAction(researchUnavailable)}, nil
	}
	results, err := d.deps.Search.Search(ctx, query, d.opts.SearchResults)
	if err != nil && !errors.Is(err, research.ErrNotFound) {
		return []Action{textAction(researchFailed)}, err
	}
	if len(results) == 0 {
		return []Action{textAction(fmt.Sprintf(searchNotFound, query))}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Resultados para “%s”:", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n\n%d. *%s*\n%s", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			b.WriteString("\n" + r.Snippet)
		}
	}
	return []Action{textAction(b.String())}, nil
}

func (d *Dispatcher) summarize(ctx context.Context, link string) ([]Action, error) {
	if link == "" {
		return []Action{textAction(summarizeUsage)}, nil
	}
	if _, err := research.ValidateURL(link); err != nil {
		return []Action{textAction(summarizeInvalidURL)}, nil
	}
	if d.deps.Summarizer == nil {
		return []Action{textAction(researchUnavailable)}, nil
	}
	summary, err := d.deps.Summarizer.Summarize(ctx, link)
	if errors.Is(err, research.ErrInvalidURL) {
		return []Action{textAction(summarizeBlockedURL)}, err
	}
	if err != nil || summary == "" {
		return []Action{textAction(researchFailed)}, err
	}
	return []Action{textAction(fmt.Sprintf(summarizeReplyFormat, link, summary))}, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

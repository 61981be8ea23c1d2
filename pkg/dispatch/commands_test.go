package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/harun/iattom/pkg/artifact"
	"github.com/harun/iattom/pkg/research"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImages struct {
	url    string
	err    error
	prompt string
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.url, f.err
}

type fakeDocuments struct {
	err         error
	format      artifact.Format
	title, body string
}

func (f *fakeDocuments) CreateDocument(ctx context.Context, format artifact.Format, title, body string) (artifact.Document, error) {
	f.format, f.title, f.body = format, title, body
	if f.err != nil {
		return artifact.Document{}, f.err
	}
	return artifact.Document{
		ID:       "abc",
		Format:   format,
		Filename: artifact.DisplayFilename(title, format),
		URL:      "https://bot.example/files/abc." + string(format),
	}, nil
}

type fakeResearch struct {
	summary research.Summary
	results []research.Result
	text    string
	err     error
}

func (f *fakeResearch) Lookup(ctx context.Context, topic string) (research.Summary, error) {
	return f.summary, f.err
}

func (f *fakeResearch) Search(ctx context.Context, query string, max int) ([]research.Result, error) {
	if len(f.results) > max {
		return f.results[:max], f.err
	}
	return f.results, f.err
}

func (f *fakeResearch) Summarize(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

func TestCommand_Image(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	assert.Equal(t, imageUnavailable, body(h.send("img: um gato")))
	assert.Equal(t, imageUsage, body(h.send("img:")))

	images := &fakeImages{url: "https://cdn.example/cat.png"}
	h = newHarness(t, Options{}, Deps{Images: images})
	r := h.send("Imagem: Um gato astronauta")
	require.Len(t, r.Actions, 1)
	assert.Equal(t, Action{
		Kind:    ActionImage,
		URL:     "https://cdn.example/cat.png",
		Caption: "IAttom – imagem: Um gato astronauta",
	}, r.Actions[0])
	assert.Equal(t, "Um gato astronauta", images.prompt)

	images.url, images.err = "", errors.New("rate limited")
	assert.Equal(t, imageFailed, body(h.send("img: outro")))

	images.err = nil
	assert.Equal(t, imageFailed, body(h.send("img: vazio")))
}

func TestCommand_Document(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	assert.Equal(t, documentUnavailable, body(h.send("pdf: Plano | estudar")))

	docs := &fakeDocuments{}
	h = newHarness(t, Options{}, Deps{Documents: docs})

	r := h.send("pdf: Plano da semana | segunda: estudar")
	require.Len(t, r.Actions, 2)
	assert.Equal(t, "Prontinho! Seu documento *Plano da semana* está logo abaixo. 📄", r.Actions[0].Body)
	assert.Equal(t, ActionDocument, r.Actions[1].Kind)
	assert.Equal(t, "https://bot.example/files/abc.pdf", r.Actions[1].URL)
	assert.Equal(t, artifact.FormatPDF, docs.format)
	assert.Equal(t, "Plano da semana", docs.title)
	assert.Equal(t, "segunda: estudar", docs.body)

	h.send("docx: Lista de compras")
	assert.Equal(t, artifact.FormatDOCX, docs.format)
	assert.Equal(t, "Lista de compras", docs.title)
	assert.Equal(t, "Lista de compras", docs.body)

	assert.Equal(t, "Diga o título e o texto: ex. *docx: Plano da semana | estudar segunda e quarta*.", body(h.send("doc:")))

	docs.err = artifact.ErrNoBaseURL
	assert.Equal(t, documentUnavailable, body(h.send("pdf: x | y")))

	docs.err = errors.New("disk full")
	assert.Equal(t, documentFailed, body(h.send("pdf: x | y")))
}

func TestSplitDocument(t *testing.T) {
	tests := []struct {
		payload, title, body string
	}{
		{"Título | corpo", "Título", "corpo"},
		{"Título |", "Título", "Título"},
		{"| só corpo", "só corpo", "só corpo"},
		{"linha um\nlinha dois", "linha um", "linha um\nlinha dois"},
	}
	for _, tt := range tests {
		title, body := splitDocument(tt.payload)
		assert.Equal(t, tt.title, title, tt.payload)
		assert.Equal(t, tt.body, body, tt.payload)
	}

	long := "Um título muito muito muito longo que ultrapassa o limite de sessenta letras"
	title, _ := splitDocument(long)
	assert.LessOrEqual(t, len([]rune(title)), maxDocumentTitleRunes)
}

func TestCommand_Knowledge(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	assert.Equal(t, researchUnavailable, body(h.send("wiki: fotossíntese")))

	kb := &fakeResearch{summary: research.Summary{
		Title:   "Fotossíntese",
		Extract: "Processo pelo qual plantas produzem energia.",
		URL:     "https://pt.wikipedia.org/wiki/Fotoss%C3%ADntese",
	}}
	h = newHarness(t, Options{}, Deps{Knowledge: kb})
	assert.Equal(t, knowledgeUsage, body(h.send("wiki:")))
	assert.Equal(t,
		"*Fotossíntese*\nProcesso pelo qual plantas produzem energia.\nhttps://pt.wikipedia.org/wiki/Fotoss%C3%ADntese",
		body(h.send("wiki: fotossíntese")))

	kb.err = research.ErrNotFound
	assert.Equal(t, "Não encontrei nada sobre “xyz”. Tenta com outras palavras?", body(h.send("wiki: xyz")))

	kb.err = errors.New("timeout")
	assert.Equal(t, researchFailed, body(h.send("wiki: xyz")))
}

func TestCommand_Search(t *testing.T) {
	web := &fakeResearch{results: []research.Result{
		{Title: "Um", URL: "https://a.example", Snippet: "primeiro"},
		{Title: "Dois", URL: "https://b.example"},
		{Title: "Três", URL: "https://c.example"},
	}}
	h := newHarness(t, Options{SearchResults: 2}, Deps{Search: web})

	assert.Equal(t,
		"Resultados para “go”:\n\n1. *Um*\nhttps://a.example\nprimeiro\n\n2. *Dois*\nhttps://b.example",
		body(h.send("buscar: go")))

	web.results = nil
	assert.Equal(t, "Não encontrei resultados para “nada”.", body(h.send("buscar: nada")))
}

func TestCommand_Summarize(t *testing.T) {
	s := &fakeResearch{text: "Três frases curtas."}
	h := newHarness(t, Options{}, Deps{Summarizer: s})

	assert.Equal(t, summarizeUsage, body(h.send("resumir:")))
	assert.Equal(t, summarizeInvalidURL, body(h.send("resumir: ftp://x")))
	assert.Equal(t, "Resumo de https://a.example/post:\n\nTrês frases curtas.", body(h.send("resumir: https://a.example/post")))

	s.err = errors.New("403")
	assert.Equal(t, researchFailed, body(h.send("resumir: https://a.example/post")))

	s.err = fmt.Errorf("failed to fetch page: %w", research.ErrInvalidURL)
	assert.Equal(t, summarizeBlockedURL, body(h.send("resumir: http://127.0.0.1:8080/metrics")))
}

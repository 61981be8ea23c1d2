// Package artifact produces the files a contact can ask for: generated
// images and PDF or DOCX documents. Files are written under a local
// directory and exposed through a public base URL.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harun/iattom/internal/observability"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ErrNoBaseURL means generated files cannot be linked because no public base URL is configured
var ErrNoBaseURL = errors.New("public base url is not configured")

// Format is a generated file type
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPNG  Format = "png"
)

var contentTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatPNG:  "image/png",
}

var fileName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}\.(pdf|docx|png)$`)

// Document is a stored file
type Document struct {
	ID       string
	Format   Format
	Filename string // name offered to the contact, e.g. "Relatorio.pdf"
	Path     string
	URL      string
}

// StoreOptions configures a DocumentStore
type StoreOptions struct {
	Dir           string
	PublicBaseURL string
}

// DocumentStore writes generated files and builds their public locators
type DocumentStore struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
}

// NewDocumentStore creates the storage directory if needed
func NewDocumentStore(opts StoreOptions, logger zerolog.Logger) (*DocumentStore, error) {
	observability.EnsureRegistered()

	if opts.Dir == "" {
		return nil, fmt.Errorf("document directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	return &DocumentStore{
		dir:     opts.Dir,
		baseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
		logger:  logger,
	}, nil
}

// Available reports whether stored files can be linked
func (s *DocumentStore) Available() bool {
	return s != nil && s.baseURL != ""
}

// CreateDocument renders body under title as a PDF or DOCX file
func (s *DocumentStore) CreateDocument(ctx context.Context, format Format, title, body string) (Document, error) {
	if !s.Available() {
		return Document{}, ErrNoBaseURL
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatPDF:
		data, err = renderPDF(title, body)
	case FormatDOCX:
		data, err = renderDOCX(title, body)
	default:
		err = fmt.Errorf("unsupported document format: %s", format)
	}
	if err != nil {
		observability.RecordArtifact(string(format), false)
		return Document{}, fmt.Errorf("failed to render %s: %w", format, err)
	}

	doc, err := s.Save(ctx, format, data)
	if err != nil {
		return Document{}, err
	}
	doc.Filename = DisplayFilename(title, format)
	return doc, nil
}

// Save stores raw bytes of the given format and returns the new Document
func (s *DocumentStore) Save(ctx context.Context, format Format, data []byte) (Document, error) {
	if !s.Available() {
		return Document{}, ErrNoBaseURL
	}
	if _, ok := contentTypes[format]; !ok {
		return Document{}, fmt.Errorf("unsupported document format: %s", format)
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return Document{}, fmt.Errorf("failed to generate document id: %w", err)
	}
	name := id + "." + string(format)
	p := filepath.Join(s.dir, name)

	if err := os.WriteFile(p, data, 0640); err != nil {
		observability.RecordArtifact(string(format), false)
		return Document{}, fmt.Errorf("failed to write document: %w", err)
	}
	observability.RecordArtifact(string(format), true)

	s.logger.Info().
		Str("document_id", id).
		Str("format", string(format)).
		Int("bytes", len(data)).
		Msg("Document stored")

	return Document{
		ID:       id,
		Format:   format,
		Filename: name,
		Path:     p,
		URL:      s.baseURL + "/files/" + name,
	}, nil
}

// Handler serves stored files by their last path segment
func (s *DocumentStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Base(r.URL.Path)
		if !fileName.MatchString(name) {
			http.NotFound(w, r)
			return
		}

		ext := Format(strings.TrimPrefix(filepath.Ext(name), "."))
		f, err := os.Open(filepath.Join(s.dir, name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypes[ext])
		http.ServeContent(w, r, name, info.ModTime(), f)
	})
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N} _.-]+`)

// DisplayFilename derives a download name from a document title
func DisplayFilename(title string, format Format) string {
	name := strings.TrimSpace(unsafeFilename.ReplaceAllString(title, ""))
	name = strings.Join(strings.Fields(name), "_")
	if runes := []rune(name); len(runes) > 60 {
		name = string(runes[:60])
	}
	if name == "" {
		name = "documento"
	}
	return name + "." + string(format)
}

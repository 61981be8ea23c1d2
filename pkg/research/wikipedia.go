package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Summary is a knowledge lookup result
type Summary struct {
	Title   string
	Extract string
	URL     string
}

// WikipediaOptions configures a Wikipedia client
type WikipediaOptions struct {
	Language string // default "pt"
	BaseURL  string // overrides https://<lang>.wikipedia.org
	Timeout  time.Duration
	Client   *http.Client
}

// Wikipedia looks topics up through the REST page summary endpoint
type Wikipedia struct {
	baseURL string
	client  *http.Client
}

// NewWikipedia creates a Wikipedia client
func NewWikipedia(opts WikipediaOptions) *Wikipedia {
	lang := opts.Language
	if lang == "" {
		lang = "pt"
	}
	base := opts.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.wikipedia.org", lang)
	}
	return &Wikipedia{
		baseURL: strings.TrimRight(base, "/"),
		client:  newHTTPClient(opts.Client, opts.Timeout),
	}
}

type wikiSummary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Lookup returns the summary of the article best matching topic
func (w *Wikipedia) Lookup(ctx context.Context, topic string) (Summary, error) {
	title := strings.Join(strings.Fields(topic), "_")
	if title == "" {
		return Summary{}, fmt.Errorf("topic cannot be empty")
	}

	endpoint := w.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(title) + "?redirect=true"
	body, _, err := get(ctx, w.client, endpoint, "application/json", 1<<20)
	if err != nil {
		return Summary{}, err
	}

	var ws wikiSummary
	if err := json.Unmarshal(body, &ws); err != nil {
		return Summary{}, fmt.Errorf("failed to decode summary: %w", err)
	}
	if strings.TrimSpace(ws.Extract) == "" {
		return Summary{}, ErrNotFound
	}

	return Summary{
		Title:   ws.Title,
		Extract: strings.TrimSpace(ws.Extract),
		URL:     ws.ContentURLs.Desktop.Page,
	}, nil
}

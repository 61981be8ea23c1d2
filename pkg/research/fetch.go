package research

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Page is the readable content of a fetched URL
type Page struct {
	URL   string
	Title string
	Text  string
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	MaxBytes int64 // response body limit (default: 2 MiB)
	MaxChars int   // text limit after extraction (default: 20000)
	Timeout  time.Duration

	// Client replaces the guarded client. Only the URL check applies to it.
	Client *http.Client

	// AllowPrivate permits loopback and private addresses
	AllowPrivate bool
}

// Fetcher downloads pages and reduces them to plain text
type Fetcher struct {
	client   *http.Client
	guard    *Guard
	maxBytes int64
	maxChars int
}

// NewFetcher creates a Fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 2 << 20
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 20000
	}
	guard := &Guard{AllowPrivate: opts.AllowPrivate}
	client := opts.Client
	if client == nil {
		client = newGuardedClient(guard, opts.Timeout)
	}
	return &Fetcher{
		client:   client,
		guard:    guard,
		maxBytes: opts.MaxBytes,
		maxChars: opts.MaxChars,
	}
}

// Fetch downloads rawURL and extracts its title and text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := f.guard.Check(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}

	body, header, err := get(ctx, f.client, u.String(), "text/html,application/xhtml+xml,text/plain;q=0.9", f.maxBytes)
	if err != nil {
		return Page{}, err
	}

	page := Page{URL: u.String()}
	if ct := header.Get("Content-Type"); strings.Contains(ct, "text/plain") {
		page.Text = strings.Join(strings.Fields(string(body)), " ")
	} else {
		title, text, err := readableText(string(body))
		if err != nil {
			return Page{}, err
		}
		page.Title, page.Text = title, text
	}

	if r := []rune(page.Text); len(r) > f.maxChars {
		page.Text = string(r[:f.maxChars])
	}
	return page, nil
}

// newGuardedClient checks every dialed address, which covers redirects
func newGuardedClient(guard *Guard, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: guard.control,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			_, err := guard.Check(req.Context(), req.URL.String())
			return err
		},
	}
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"svg": true, "nav": true, "footer": true, "header": true, "form": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "tr": true,
}

// readableText returns the document title and its visible text, one line per block
func readableText(content string) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", "", err
	}

	var title string
	var sb strings.Builder
	var walk func(*html.Node, int)
	walk = func(n *html.Node, depth int) {
		if depth > 100 {
			return
		}
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "title" {
				if title == "" {
					title = textContent(n)
				}
				return
			}
			if blockElements[n.Data] {
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
	}
	walk(doc, 0)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return title, strings.Join(lines, "\n"), nil
}

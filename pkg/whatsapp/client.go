package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harun/iattom/internal/observability"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by sends when no access token or phone number id is set
var ErrNotConfigured = errors.New("whatsapp client is not configured")

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v23.0"
	defaultTimeout    = 30 * time.Second
	maxCaptionRunes   = 1024
)

// APIError is a non-2xx Graph API response
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api returned %d: %s", e.Status, e.Body)
}

// ClientOptions configures a Client
type ClientOptions struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client sends messages through the Cloud API
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   zerolog.Logger
}

// NewClient creates a Client. A client without credentials is valid; its
// sends fail with ErrNotConfigured.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	observability.EnsureRegistered()

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		token:  opts.AccessToken,
		http:   httpClient,
		logger: logger,
	}
	if opts.PhoneNumberID != "" {
		c.endpoint = fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(opts.BaseURL, "/"), opts.APIVersion, opts.PhoneNumberID)
	}
	return c
}

// Configured reports whether the client can send
func (c *Client) Configured() bool {
	return c.token != "" && c.endpoint != ""
}

type outbound struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *textBody `json:"text,omitempty"`
	Image            *media    `json:"image,omitempty"`
	Document         *media    `json:"document,omitempty"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type media struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SendText sends a text message
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, outbound{
		To:   to,
		Type: "text",
		Text: &textBody{Body: body, PreviewURL: true},
	})
}

// SendImage sends an image by link. Captions longer than the API limit are truncated.
func (c *Client) SendImage(ctx context.Context, to, link, caption string) error {
	return c.send(ctx, outbound{
		To:    to,
		Type:  "image",
		Image: &media{Link: link, Caption: truncateRunes(caption, maxCaptionRunes)},
	})
}

// SendDocument sends a document by link
func (c *Client) SendDocument(ctx context.Context, to, link, filename string) error {
	return c.send(ctx, outbound{
		To:       to,
		Type:     "document",
		Document: &media{Link: link, Filename: filename},
	})
}

func (c *Client) send(ctx context.Context, msg outbound) (err error) {
	defer func() { observability.RecordOutbound(msg.Type, err == nil) }()

	if !c.Configured() {
		return ErrNotConfigured
	}
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	c.logger.Debug().
		Str("to", msg.To).
		Str("type", msg.Type).
		Int("status", resp.StatusCode).
		Msg("Message sent")
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

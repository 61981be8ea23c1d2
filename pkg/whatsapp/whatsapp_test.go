package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textEnvelope = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"wa_id": "5511999990000", "profile": {"name": "Hoje ✨ Ana Paula"}}],
        "messages": [
          {"from": "5511999990000", "id": "wamid.1", "timestamp": "1760000000", "type": "text", "text": {"body": "  oi  "}},
          {"from": "5511999990000", "id": "wamid.2", "timestamp": "1760000001", "type": "image"}
        ]
      }
    }]
  }, {
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "contacts": [{"wa_id": "5521888880000", "profile": {"name": "Bruno"}}],
        "messages": [{"from": "5521888880000", "id": "wamid.3", "type": "text", "text": {"body": "ajuda"}}]
      }
    }]
  }]
}`

func TestParseEvents(t *testing.T) {
	events, rejected, err := ParseEvents([]byte(textEnvelope))
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, events, 3)

	assert.Equal(t, Inbound{
		ContactID:   "5511999990000",
		MessageID:   "wamid.1",
		Type:        "text",
		Text:        "oi",
		ProfileName: "Hoje ✨ Ana Paula",
		Timestamp:   time.Unix(1760000000, 0).UTC(),
	}, events[0])

	assert.Equal(t, "image", events[1].Type)
	assert.Empty(t, events[1].Text)

	assert.Equal(t, "5521888880000", events[2].ContactID)
	assert.Equal(t, "Bruno", events[2].ProfileName)
	assert.True(t, events[2].Timestamp.IsZero())
}

func TestParseEvents_StatusOnly(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}`
	events, rejected, err := ParseEvents([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, rejected)
}

func TestParseEvents_SkipsBadMessages(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"1","type":"text","text":{"body":"sem id"}},
		{"from":"5511999990000","id":"wamid.ok","type":"text","text":{"body":"oi"}},
		{"from":"","id":"wamid.nofrom","type":"text"},
		{"from":42,"id":"wamid.num","type":"text"},
		"not an object"
	]}}]}]}`

	events, rejected, err := ParseEvents([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "wamid.ok", events[0].MessageID)
	assert.Equal(t, "oi", events[0].Text)

	require.Len(t, rejected, 4)
	assert.Empty(t, rejected[0].MessageID)
	assert.Equal(t, "wamid.nofrom", rejected[1].MessageID)
	assert.Equal(t, "wamid.num", rejected[2].MessageID)
	for _, r := range rejected {
		assert.NotEmpty(t, r.Reason)
	}
}

func TestParseEvents_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"entry": [`},
		{"empty", ``},
		{"missing entry", `{"object": "x"}`},
		{"entry not array", `{"entry": {}}`},
		{"messages not array", `{"entry":[{"changes":[{"value":{"messages":{"from":"1"}}}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseEvents([]byte(tt.body))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

type captured struct {
	path string
	auth string
	body map[string]interface{}
}

func newGraphServer(t *testing.T, status int, c *captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
			return
		}
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.out"}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_SendText(t *testing.T) {
	var c captured
	server := newGraphServer(t, http.StatusOK, &c)
	client := NewClient(ClientOptions{AccessToken: "EAAtoken", PhoneNumberID: "123", BaseURL: server.URL}, zerolog.Nop())

	require.NoError(t, client.SendText(context.Background(), "5511", "Olá!"))
	assert.Equal(t, "/v23.0/123/messages", c.path)
	assert.Equal(t, "Bearer EAAtoken", c.auth)
	assert.Equal(t, "whatsapp", c.body["messaging_product"])
	assert.Equal(t, "5511", c.body["to"])
	assert.Equal(t, "text", c.body["type"])
	assert.Equal(t, "Olá!", c.body["text"].(map[string]interface{})["body"])
}

func TestClient_SendImageTruncatesCaption(t *testing.T) {
	var c captured
	server := newGraphServer(t, http.StatusOK, &c)
	client := NewClient(ClientOptions{AccessToken: "t", PhoneNumberID: "123", BaseURL: server.URL, APIVersion: "v20.0"}, zerolog.Nop())

	caption := strings.Repeat("é", 1500)
	require.NoError(t, client.SendImage(context.Background(), "5511", "https://img/x.png", caption))

	assert.Equal(t, "/v20.0/123/messages", c.path)
	image := c.body["image"].(map[string]interface{})
	assert.Equal(t, "https://img/x.png", image["link"])
	assert.Len(t, []rune(image["caption"].(string)), maxCaptionRunes)
}

func TestClient_SendDocument(t *testing.T) {
	var c captured
	server := newGraphServer(t, http.StatusOK, &c)
	client := NewClient(ClientOptions{AccessToken: "t", PhoneNumberID: "123", BaseURL: server.URL}, zerolog.Nop())

	require.NoError(t, client.SendDocument(context.Background(), "5511", "https://bot/files/a.pdf", "Relatorio.pdf"))
	doc := c.body["document"].(map[string]interface{})
	assert.Equal(t, "https://bot/files/a.pdf", doc["link"])
	assert.Equal(t, "Relatorio.pdf", doc["filename"])
}

func TestClient_APIError(t *testing.T) {
	var c captured
	server := newGraphServer(t, http.StatusBadRequest, &c)
	client := NewClient(ClientOptions{AccessToken: "t", PhoneNumberID: "123", BaseURL: server.URL}, zerolog.Nop())

	err := client.SendText(context.Background(), "5511", "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "Invalid parameter")
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(ClientOptions{}, zerolog.Nop())
	assert.False(t, client.Configured())
	assert.ErrorIs(t, client.SendText(context.Background(), "5511", "x"), ErrNotConfigured)

	client = NewClient(ClientOptions{AccessToken: "t"}, zerolog.Nop())
	assert.False(t, client.Configured())
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(ClientOptions{AccessToken: "t", PhoneNumberID: "1", BaseURL: server.URL, Timeout: 50 * time.Millisecond}, zerolog.Nop())
	start := time.Now()
	err := client.SendText(context.Background(), "5511", "x")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

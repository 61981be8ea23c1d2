package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

type mockResponder struct {
	mock.Mock
	name string
}

func (m *mockResponder) Name() string { return m.name }

func (m *mockResponder) Generate(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	first := &mockResponder{name: "first"}
	second := &mockResponder{name: "second"}
	third := &mockResponder{name: "third"}
	req := Request{Persona: "p", Text: "oi"}

	first.On("Generate", mock.Anything, req).Return("   ", nil)
	second.On("Generate", mock.Anything, req).Return("  Olá!  ", nil)

	chain := NewChain([]Responder{first, second, third}, ChainOptions{}, testLogger())
	text, err := chain.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "Olá!", text)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
	third.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Equal(t, "first,second,third", chain.Name())
}

func TestChain_FailuresFallThroughAndCoolDown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	broken := &mockResponder{name: "broken"}
	backup := &mockResponder{name: "backup"}
	broken.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("boom")).Once()
	backup.On("Generate", mock.Anything, mock.Anything).Return("resposta", nil)

	chain := NewChain([]Responder{broken, backup}, ChainOptions{BaseCooldown: time.Minute, Now: clock}, testLogger())

	text, err := chain.Generate(context.Background(), Request{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)

	// Broken provider is skipped while cooling down
	text, err = chain.Generate(context.Background(), Request{Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)
	broken.AssertNumberOfCalls(t, "Generate", 1)

	// ... and retried after the cooldown
	now = now.Add(2 * time.Minute)
	broken.On("Generate", mock.Anything, mock.Anything).Return("voltei", nil).Once()
	text, err = chain.Generate(context.Background(), Request{Text: "c"})
	require.NoError(t, err)
	assert.Equal(t, "voltei", text)
}

func TestChain_AllFail(t *testing.T) {
	r := &mockResponder{name: "only"}
	r.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("down"))

	chain := NewChain([]Responder{r}, ChainOptions{}, testLogger())
	text, err := chain.Generate(context.Background(), Request{Text: "x"})

	assert.Empty(t, text)
	assert.EqualError(t, err, "down")
}

func TestChain_CallTimeout(t *testing.T) {
	r := &mockResponder{name: "slow"}
	r.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	})

	chain := NewChain([]Responder{r}, ChainOptions{Timeout: 20 * time.Millisecond}, testLogger())
	start := time.Now()
	text, err := chain.Generate(context.Background(), Request{Text: "x"})

	assert.Empty(t, text)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNew(t *testing.T) {
	r, err := New(nil, ChainOptions{}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, r)

	// Profiles without keys are ignored
	r, err = New([]Profile{{ID: "a", Provider: ProviderOpenAI}}, ChainOptions{}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = New([]Profile{
		{ID: "b", Provider: ProviderOpenAI, APIKey: "sk-b", Priority: 2},
		{ID: "a", Provider: ProviderAnthropic, APIKey: "sk-a", Priority: 1},
	}, ChainOptions{}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "anthropic,openai", r.Name())

	_, err = New([]Profile{{ID: "g", Provider: "gemini", APIKey: "k"}}, ChainOptions{}, testLogger())
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, "persona", systemPrompt(Request{Persona: " persona "}))
	assert.Equal(t, "persona\n\nO nome da pessoa com quem você conversa é Ana.", systemPrompt(Request{Persona: "persona", ContactName: "Ana"}))
	assert.Equal(t, "O nome da pessoa com quem você conversa é Ana.", systemPrompt(Request{ContactName: "Ana"}))
	assert.Empty(t, systemPrompt(Request{}))
}

func TestOpenAIResponder_Generate(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Oi, Ana!"}}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer server.Close()

	r := NewOpenAIResponder(Profile{APIKey: "sk-test", Model: "gpt-test", BaseURL: server.URL, MaxTokens: 100})
	text, err := r.Generate(context.Background(), Request{Persona: "Você é o IAttom.", ContactName: "Ana", Text: "oi"})

	require.NoError(t, err)
	assert.Equal(t, "Oi, Ana!", text)
	assert.Equal(t, "gpt-test", captured["model"])
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])
	assert.Equal(t, ProviderOpenAI, r.Name())
}

func TestOpenAIResponder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	r := NewOpenAIResponder(Profile{APIKey: "sk-test", BaseURL: server.URL})
	text, err := r.Generate(context.Background(), Request{Text: "oi"})

	assert.Error(t, err)
	assert.Empty(t, text)
}

func TestAnthropicResponder_Generate(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "Olá"}, {"type": "text", "text": ", Ana!"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	r := NewAnthropicResponder(Profile{APIKey: "sk-ant", Model: "claude-test", BaseURL: server.URL})
	text, err := r.Generate(context.Background(), Request{Persona: "Você é o IAttom.", ContactName: "Ana", Text: "oi"})

	require.NoError(t, err)
	assert.Equal(t, "Olá, Ana!", text)
	assert.Equal(t, "claude-test", captured["model"])
	assert.EqualValues(t, defaultAnthropicMaxTokens, captured["max_tokens"])
	assert.NotNil(t, captured["system"])
	assert.Equal(t, ProviderAnthropic, r.Name())
}

package delegate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIResponder answers through the chat completions API
type OpenAIResponder struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIResponder creates a responder for profile p
func NewOpenAIResponder(p Profile) *OpenAIResponder {
	opts := []option.RequestOption{option.WithAPIKey(p.APIKey), option.WithMaxRetries(0)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	model := p.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIResponder{
		client:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   p.MaxTokens,
		temperature: p.Temperature,
	}
}

// Name returns the provider name
func (r *OpenAIResponder) Name() string {
	return ProviderOpenAI
}

// Generate sends the persona and the contact's text as a two-message chat
func (r *OpenAIResponder) Generate(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if sys := systemPrompt(req); sys != "" {
		messages = append(messages, openai.SystemMessage(sys))
	}
	messages = append(messages, openai.UserMessage(req.Text))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(r.model),
		Messages: messages,
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(r.maxTokens))
	}
	if r.temperature > 0 {
		params.Temperature = openai.Float(r.temperature)
	}

	response, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to call openai: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Message.Content, nil
}

package delegate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 512
)

// AnthropicResponder answers through the messages API
type AnthropicResponder struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicResponder creates a responder for profile p
func NewAnthropicResponder(p Profile) *AnthropicResponder {
	opts := []option.RequestOption{option.WithAPIKey(p.APIKey), option.WithMaxRetries(0)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	model := p.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		// The messages API requires max_tokens.
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicResponder{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: p.Temperature,
	}
}

// Name returns the provider name
func (r *AnthropicResponder) Name() string {
	return ProviderAnthropic
}

// Generate sends the persona as system prompt and the text as the only user turn
func (r *AnthropicResponder) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: int64(r.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text)),
		},
	}
	if sys := systemPrompt(req); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	if r.temperature > 0 {
		params.Temperature = anthropic.Float(r.temperature)
	}

	response, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to call anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

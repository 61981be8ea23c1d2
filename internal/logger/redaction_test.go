package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		input    string
		contains string
		hidden   string
	}{
		{
			name:     "openai key",
			input:    "key sk-proj1234567890abcdefghijklmnop",
			contains: "key [REDACTED]",
			hidden:   "sk-proj",
		},
		{
			name:     "anthropic key",
			input:    "sk-ant-REDACTED",
			contains: "[REDACTED]",
			hidden:   "api03",
		},
		{
			name:     "graph token",
			input:    "using EAAGm0PX4ZCpsBAKZAbcdefghijklmnop for send",
			contains: "using [REDACTED] for send",
			hidden:   "EAAGm0",
		},
		{
			name:     "bearer header",
			input:    "Authorization: Bearer abc.def-ghi",
			contains: "Bearer [REDACTED]",
			hidden:   "abc.def",
		},
		{
			name:     "verify token query",
			input:    "hub.mode=subscribe&verify_token=meu-token&x=1",
			contains: "verify_token=[REDACTED]&x=1",
			hidden:   "meu-token",
		},
		{
			name:     "json app secret",
			input:    `{"app_secret":"shh-its-secret"}`,
			contains: `"app_secret":"[REDACTED]"`,
			hidden:   "shh-its",
		},
		{
			name:     "signature",
			input:    "sha256=" + strings.Repeat("ab", 32),
			contains: "sha256=[REDACTED]",
			hidden:   "abab",
		},
		{
			name:     "plain text untouched",
			input:    "Prazer te conhecer, Ana!",
			contains: "Prazer te conhecer, Ana!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Redact(tt.input)
			assert.Contains(t, out, tt.contains)
			if tt.hidden != "" {
				assert.NotContains(t, out, tt.hidden)
			}
		})
	}
}

func TestAddPattern(t *testing.T) {
	r := NewRedactor()
	require.NoError(t, r.AddPattern(`\+55\d{10,11}`))
	assert.Equal(t, "from [REDACTED]", r.Redact("from +5511999998888"))

	assert.Error(t, r.AddPattern(`[invalid`))
}

func TestWrap(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	input := []byte("token: sk-abcdefghijklmnopqrstuvwxyz\n")
	n, err := w.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.NotContains(t, buf.String(), "sk-abcdef")
}

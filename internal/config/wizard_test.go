package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	input := strings.Join([]string{
		"not-a-token",     // rejected
		"EAAGm0PX4ZCpsBA", // access token
		"109876543210987", // phone number id
		"verify-me",
		"", // no app secret
		"sk-openai",
		"", // skip anthropic
		"https://bot.example.com",
		"sqlite",
		"DEBUG",
	}, "\n") + "\n"

	var out bytes.Buffer
	cfg, err := NewWizardIO(strings.NewReader(input), &out).Run(nil)
	require.NoError(t, err)

	assert.Equal(t, "EAAGm0PX4ZCpsBA", cfg.WhatsApp.AccessToken)
	assert.Equal(t, "109876543210987", cfg.WhatsApp.PhoneNumberID)
	assert.Equal(t, "verify-me", cfg.WhatsApp.VerifyToken)
	assert.Empty(t, cfg.WhatsApp.AppSecret)
	require.Len(t, cfg.AI.Profiles, 1)
	assert.Equal(t, "openai", cfg.AI.Profiles[0].Provider)
	assert.Equal(t, "sk-openai", cfg.Images.APIKey)
	assert.Equal(t, "https://bot.example.com", cfg.Artifacts.PublicBaseURL)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.Contains(t, out.String(), "Error: invalid WhatsApp access token format")
	assert.Contains(t, out.String(), "Configuration complete!")
}

func TestWizardKeepsCurrentValues(t *testing.T) {
	base := DefaultConfig()
	base.WhatsApp.AccessToken = "EAAexistingtoken"
	base.Session.Backend = "memory"

	var out bytes.Buffer
	cfg, err := NewWizardIO(strings.NewReader(strings.Repeat("\n", 9)), &out).Run(base)
	require.NoError(t, err)

	assert.Equal(t, "EAAexistingtoken", cfg.WhatsApp.AccessToken)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Contains(t, out.String(), "Access token [EAAe****]")
	assert.Contains(t, out.String(), "Store (memory/sqlite) [memory]")
	assert.NotContains(t, out.String(), "EAAexistingtoken")
}

func TestWizardEOF(t *testing.T) {
	_, err := NewWizardIO(strings.NewReader("EAAGm0PX4ZCpsBA\n"), &bytes.Buffer{}).Run(nil)
	assert.Error(t, err)
}

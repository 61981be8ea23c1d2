package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/iattom/internal/config"
)

func TestConfigureCommand(t *testing.T) {
	path := isolate(t)

	input := strings.Join([]string{
		"EAAGm0PX4ZCpsBA",
		"109876543210987",
		"verify-me",
		"app-secret",
		"sk-openai",
		"",
		"https://bot.example.com",
		"",
		"",
	}, "\n") + "\n"

	out, err := run(t, input, "configure", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved to: "+path)
	assert.Contains(t, out, "iattom serve")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EAAGm0PX4ZCpsBA", cfg.WhatsApp.AccessToken)
	assert.Equal(t, "verify-me", cfg.WhatsApp.VerifyToken)
	assert.Equal(t, "https://bot.example.com", cfg.Artifacts.PublicBaseURL)
	require.Len(t, cfg.AI.Profiles, 1)
	assert.Equal(t, "sk-openai", cfg.AI.Profiles[0].APIKey)
}

func TestConfigureCommandAbortsOnEOF(t *testing.T) {
	path := isolate(t)

	_, err := run(t, "EAAGm0PX4ZCpsBA\n", "configure", "--config", path)
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

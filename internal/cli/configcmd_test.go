package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	path := isolate(t)
	t.Setenv("ACCESS_TOKEN", "EAAGm0PX4ZCpsBAKZAsecret")
	t.Setenv("PORT", "9191")

	out, err := run(t, "", "config", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, `"port": 9191`)
	assert.Contains(t, out, "EAAG****")
	assert.NotContains(t, out, "EAAGm0PX4ZCpsBAKZAsecret")
	assert.Contains(t, out, "Warnings:")
	assert.Contains(t, out, "verify token missing")
}

func TestConfigCommandInvalid(t *testing.T) {
	path := isolate(t)
	t.Setenv("SESSION_STORE", "redis")

	_, err := run(t, "", "config", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session backend")
}

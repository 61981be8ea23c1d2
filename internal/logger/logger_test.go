package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console json", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "debug", Console: true, Out: &buf})
		require.NoError(t, err)
		defer l.Close()

		z := l.Zerolog()
		z.Debug().Str("contact_id", "5511").Msg("Dispatch started")

		assert.Contains(t, buf.String(), `"message":"Dispatch started"`)
		assert.Contains(t, buf.String(), `"service":"iattom"`)
		assert.Equal(t, zerolog.DebugLevel, z.GetLevel())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "loud", Console: true, Out: &buf})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, l.Zerolog().GetLevel())
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "info", Console: true, Redaction: true, Out: &buf})
		require.NoError(t, err)

		z := l.Zerolog()
		z.Info().Str("access_token", "EAAGm0PX4ZCpsBAKZAbcdefghijklmnop").Msg("Sending")
		assert.NotContains(t, buf.String(), "EAAGm0PX4")
	})

	t.Run("rotating file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "iattom.log")
		l, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)
		_, ok := l.file.(*RotatingWriter)
		assert.True(t, ok)

		z := l.Zerolog()
		z.Info().Msg("Server started")
		require.NoError(t, l.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Server started")
	})

	t.Run("plain file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "iattom.log")
		l, err := New(Config{File: logFile})
		require.NoError(t, err)
		_, ok := l.file.(*os.File)
		assert.True(t, ok)
		require.NoError(t, l.Close())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
}

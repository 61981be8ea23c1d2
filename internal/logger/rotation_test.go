package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates file and directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "iattom.log")

		rw, err := NewRotatingWriter(logFile, RotationOptions{MaxSizeMB: 10})
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("rejects non-positive size", func(t *testing.T) {
		_, err := NewRotatingWriter(filepath.Join(t.TempDir(), "x.log"), RotationOptions{})
		assert.Error(t, err)
	})

	t.Run("resumes existing size", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "iattom.log")
		require.NoError(t, os.WriteFile(logFile, []byte("previous\n"), 0644))

		rw, err := NewRotatingWriter(logFile, RotationOptions{MaxSizeMB: 1})
		require.NoError(t, err)
		defer rw.Close()

		assert.Equal(t, int64(len("previous\n")), rw.currentSize)
	})
}

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "iattom.log")

	rw, err := NewRotatingWriter(logFile, RotationOptions{MaxSizeMB: 1})
	require.NoError(t, err)
	rw.maxSize = 100
	tick := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rw.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	line := []byte(strings.Repeat("a", 60) + "\n")
	for i := 0; i < 3; i++ {
		n, err := rw.Write(line)
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	require.NoError(t, rw.Close())

	rotated, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	assert.Len(t, rotated, 2)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, line, content)
}

func TestRotatingWriter_Compress(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "iattom.log")

	rw, err := NewRotatingWriter(logFile, RotationOptions{MaxSizeMB: 1, Compress: true})
	require.NoError(t, err)
	rw.maxSize = 10

	_, err = rw.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second line\n"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	gz, err := filepath.Glob(logFile + ".*.gz")
	require.NoError(t, err)
	assert.Len(t, gz, 1)

	all, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	assert.Len(t, all, 1, "uncompressed copy removed")
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "iattom.log")
	rw, err := NewRotatingWriter(logFile, RotationOptions{MaxSizeMB: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = rw.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rw.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 200, strings.Count(string(content), "line\n"))
}

func TestRotatingWriter_RemovesExpired(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "iattom.log")

	old := logFile + ".20240101-000000.000"
	fresh := logFile + ".20250101-000000.000"
	require.NoError(t, os.WriteFile(old, []byte("old"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0644))
	require.NoError(t, os.Chtimes(old, time.Now().Add(-10*24*time.Hour), time.Now().Add(-10*24*time.Hour)))

	rw, err := NewRotatingWriter(logFile, RotationOptions{MaxSizeMB: 1, MaxAgeDays: 7})
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestCompressFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.log")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	require.NoError(t, compressFile(path))

	_, err := os.Stat(path + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

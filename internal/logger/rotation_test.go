package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates missing directories", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "dir", "ticketdesk.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("defaults non-positive size", func(t *testing.T) {
		rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "a.log"), 0, 0, false)
		require.NoError(t, err)
		defer rw.Close()

		assert.Equal(t, int64(DefaultMaxSizeMB)*1024*1024, rw.maxSize)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "ticketdesk.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)

	_, err = rw.Write([]byte("session started\n"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "session started\n", string(content))
}

func TestRotatingWriterRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "ticketdesk.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()
	rw.maxSize = 100

	_, err = rw.Write(bytes.Repeat([]byte("a"), 80))
	require.NoError(t, err)
	_, err = rw.Write(bytes.Repeat([]byte("b"), 80))
	require.NoError(t, err)

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "ticketdesk.log.*"))
	require.NoError(t, err)
	require.Len(t, rotated, 1)

	old, err := os.ReadFile(rotated[0])
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("a"), 80), old)

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("b"), 80), current)
}

func TestRotatingWriterOversizedFirstWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "ticketdesk.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()
	rw.maxSize = 10

	// an empty file takes the write whole rather than rotating forever
	n, err := rw.Write(bytes.Repeat([]byte("x"), 50))
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestRotatingWriterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "ticketdesk.log"), 10, 7, false)
	require.NoError(t, err)

	assert.NoError(t, rw.Close())
	assert.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "ticketdesk.log.1")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0644))

	require.NoError(t, compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestPrune(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "ticketdesk.log")

	oldFile := logFile + ".20200101-120000.000000000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := logFile + ".recent"
	require.NoError(t, os.WriteFile(recentFile, []byte("recent log"), 0644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}

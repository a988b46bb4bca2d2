package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRollsDaily(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	w.now = func() time.Time { return day }
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	w.now = func() time.Time { return day.Add(2 * time.Minute) }
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "ideaflow_2026-03-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))

	second, err := os.ReadFile(filepath.Join(dir, "ideaflow_2026-03-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))
}

func TestWriterIgnoresEmptyWrites(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	n, err := w.Write(nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

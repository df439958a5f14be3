package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// never cut inside a multi-byte rune
	assert.Equal(t, "你...", Truncate("你好", 4))
}

func TestSplitByLimit(t *testing.T) {
	assert.Nil(t, SplitByLimit("", 10))
	assert.Equal(t, []string{"hello"}, SplitByLimit("hello", 10))

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	chunks := SplitByLimit(text, 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 8)+"\n", chunks[0])
	assert.Equal(t, strings.Repeat("b", 8), chunks[1])

	long := strings.Repeat("x", 25)
	chunks = SplitByLimit(long, 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
	assert.Equal(t, long, strings.Join(chunks, ""))

	// a limit narrower than one rune still makes progress
	chunks = SplitByLimit("你好", 2)
	assert.Equal(t, []string{"你", "好"}, chunks)
}

func TestAcquireFileLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "store.lock")

	unlock, err := AcquireFileLock(lockPath, time.Second, 0)
	require.NoError(t, err)

	_, err = AcquireFileLock(lockPath, 120*time.Millisecond, 0)
	assert.Error(t, err, "second acquire should time out while held")

	unlock()
	unlock2, err := AcquireFileLock(lockPath, time.Second, 0)
	require.NoError(t, err)
	unlock2()
}

func TestAcquireFileLock_RemovesStale(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "store.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("1\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	unlock, err := AcquireFileLock(lockPath, time.Second, time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0o644))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

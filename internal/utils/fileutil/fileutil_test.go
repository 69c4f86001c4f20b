package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAtomicWriteFile tests atomic file writes
// TestAtomicWriteFile 测试原子文件写入
func TestAtomicWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	err := AtomicWriteFile(path, []byte(`{"ok":true}`), 0644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	// Overwrite keeps the latest content
	// 覆盖写入保留最新内容
	err = AtomicWriteFile(path, []byte(`{"ok":false}`), 0644)
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":false}`, string(data))

	// No leftover temp files
	// 没有遗留的临时文件
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestReadLines tests reading non-empty lines
// TestReadLines 测试读取非空行
func TestReadLines(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		lines, err := ReadLines(filepath.Join(t.TempDir(), "missing"))
		assert.NoError(t, err)
		assert.Nil(t, lines)
	})

	t.Run("Empty path", func(t *testing.T) {
		lines, err := ReadLines("")
		assert.NoError(t, err)
		assert.Nil(t, lines)
	})

	t.Run("Skips blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lines.txt")
		require.NoError(t, os.WriteFile(path, []byte("a\n\n  \nb\nc\n"), 0644))

		lines, err := ReadLines(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, lines)
	})
}

package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, relPath string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(relPath), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestScannerWalksTree(t *testing.T) {
	root := t.TempDir()
	mtime := time.Unix(1700000000, 0)
	writeFile(t, root, "a.txt", mtime)
	writeFile(t, root, "docs/b.txt", mtime)
	writeFile(t, root, "docs/deep/c.md", mtime)

	scanner := NewLocalScanner(root, nil)
	snapshot, err := scanner.Scan()
	require.NoError(t, err)

	assert.Len(t, snapshot, 3)
	assert.Contains(t, snapshot, "a.txt")
	assert.Contains(t, snapshot, "docs/b.txt")
	assert.Contains(t, snapshot, "docs/deep/c.md")
	assert.True(t, snapshot["a.txt"].Equal(mtime))
}

func TestScannerAppliesWhitelist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", time.Time{})
	writeFile(t, root, "drop.jpg", time.Time{})

	scanner := NewLocalScanner(root, NewExtFilter([]string{".txt"}, false))
	snapshot, err := scanner.Scan()
	require.NoError(t, err)

	assert.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "keep.txt")
}

func TestScannerAppliesBlacklist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", time.Time{})
	writeFile(t, root, "drop.tmp", time.Time{})

	scanner := NewLocalScanner(root, NewExtFilter([]string{".tmp"}, true))
	snapshot, err := scanner.Scan()
	require.NoError(t, err)

	assert.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "keep.txt")
}

func TestScannerIgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty.txt"), 0o755))

	scanner := NewLocalScanner(root, nil)
	snapshot, err := scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestScannerFollowsFileSymlinks(t *testing.T) {
	root := t.TempDir()
	mtime := time.Unix(1700000000, 0)
	writeFile(t, root, "real.txt", mtime)
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")))

	scanner := NewLocalScanner(root, nil)
	snapshot, err := scanner.Scan()
	require.NoError(t, err)

	assert.Len(t, snapshot, 2)
	require.Contains(t, snapshot, "link.txt")
	// the link carries the target's mtime
	assert.True(t, snapshot["link.txt"].Equal(mtime))
}

func TestScannerSkipsDirectorySymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/a.txt", time.Time{})
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "alias")))

	scanner := NewLocalScanner(root, nil)
	snapshot, err := scanner.Scan()
	require.NoError(t, err)

	assert.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "sub/a.txt")
}

func TestScannerFailsFastOnMissingRoot(t *testing.T) {
	scanner := NewLocalScanner(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	snapshot, err := scanner.Scan()
	assert.Error(t, err)
	assert.Nil(t, snapshot)
}

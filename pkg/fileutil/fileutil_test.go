package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture creates a file and a directory under a fresh temp dir.
func fixture(t *testing.T) (dir, file, sub string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(file, []byte("test"), 0644))
	sub = filepath.Join(dir, "testdir")
	require.NoError(t, os.Mkdir(sub, 0755))
	return dir, file, sub
}

func TestExists(t *testing.T) {
	dir, file, sub := fixture(t)
	missing := filepath.Join(dir, "nonexistent")

	tests := []struct {
		name string
		path string
		file bool
		dir  bool
		any  bool
	}{
		{"file", file, true, false, true},
		{"directory", sub, false, true, true},
		{"missing", missing, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.file, FileExists(tt.path), "FileExists")
			assert.Equal(t, tt.dir, DirExists(tt.path), "DirExists")
			assert.Equal(t, tt.any, PathExists(tt.path), "PathExists")
		})
	}
}

func TestResolve(t *testing.T) {
	realDir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	target := filepath.Join(realDir, "target")
	require.NoError(t, os.Mkdir(target, 0755))
	link := filepath.Join(realDir, "link")
	require.NoError(t, os.Symlink(target, link))

	t.Run("follows symlinks", func(t *testing.T) {
		got, err := Resolve(link)
		require.NoError(t, err)
		assert.Equal(t, target, got)
	})

	t.Run("missing path stays absolute", func(t *testing.T) {
		missing := filepath.Join(realDir, "missing", "file.bin")
		got, err := Resolve(missing)
		require.NoError(t, err)
		assert.Equal(t, missing, got)
	})

	t.Run("relative path becomes absolute", func(t *testing.T) {
		got, err := Resolve("some/relative/file")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got), got)
	})
}

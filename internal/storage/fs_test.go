package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLibrary(t *testing.T, skip ...string) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir(), skip...)
	require.NoError(t, err)
	return fs
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

func TestList_JPEGOnlyInWalkOrder(t *testing.T) {
	s := tempLibrary(t)
	touch(t, s.Root(), "b.jpg")
	touch(t, s.Root(), "a.JPEG")
	touch(t, s.Root(), "sub/c.Jpg")
	touch(t, s.Root(), "readme.txt")
	touch(t, s.Root(), "photo.png")
	touch(t, s.Root(), "jpg")

	items, err := s.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.JPEG", "b.jpg", "sub/c.Jpg"}, items)
}

func TestList_SkipsConfiguredDirs(t *testing.T) {
	s := tempLibrary(t, "filtered_images")
	touch(t, s.Root(), "a.jpg")
	touch(t, s.Root(), "filtered_images/a.jpg")

	items, err := s.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, items)
}

func TestIsImage(t *testing.T) {
	cases := map[string]bool{
		"a.jpg": true, "A.JPG": true, "b.jpeg": true, "c.JpEg": true,
		"d.png": false, "jpg": false, "e.jpg.txt": false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsImage(name), name)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)

	for _, p := range []string{"../../etc/passwd", "../outside.jpg", "/etc/shadow"} {
		_, err := s.Abs(p)
		assert.Error(t, err, p)
	}
}

func TestAbsRelRoundTrip(t *testing.T) {
	s := tempLibrary(t)
	abs, err := s.Abs("sub/a.jpg")
	require.NoError(t, err)
	rel, err := s.Rel(abs)
	require.NoError(t, err)
	assert.Equal(t, "sub/a.jpg", rel)

	_, err = s.Rel(filepath.Dir(s.Root()))
	assert.Error(t, err, "path outside root")
}

func TestWriteFileAtomic_NoLeftovers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "atomic.jpg")
	require.NoError(t, os.WriteFile(p, []byte("original content"), 0o600))

	require.NoError(t, WriteFileAtomic(p, []byte("updated content"), 0o600))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "updated content", string(got))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(dir, ".metaedit-tmp-*"))
	assert.Empty(t, matches)
}

func TestWriteFileAtomic_MissingDirKeepsNothing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing", "a.jpg")
	assert.Error(t, WriteFileAtomic(p, []byte("x"), 0o644))
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/metaedit-does-not-exist-" + t.Name())
	assert.Error(t, err)
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp("", "metaedit-test-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	defer os.Remove(f.Name())

	_, err = NewFS(f.Name())
	assert.Error(t, err, "root is a file")
}

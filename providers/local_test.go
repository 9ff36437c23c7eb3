package providers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettbedarf/codetree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memLocal(t *testing.T) *Local {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/ws/src/pkg", 0o755))
	require.NoError(t, fs.MkdirAll("/ws/docs", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/ws/src/main.go", []byte("package main\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/README.md", []byte("# hi\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/outside.txt", []byte("secret"), 0o644))
	return NewLocal(fs, "/ws")
}

func TestLocal_ReadDir(t *testing.T) {
	t.Parallel()
	l := memLocal(t)

	entries, err := l.ReadDir(context.Background(), "/")
	require.NoError(t, err)

	got := map[string]codetree.EntryKind{}
	for _, e := range entries {
		got[e.Path] = e.Kind
	}
	assert.Equal(t, map[string]codetree.EntryKind{
		"/README.md": codetree.KindFile,
		"/docs":      codetree.KindDir,
		"/src":       codetree.KindDir,
	}, got)

	entries, err = l.ReadDir(context.Background(), "src")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.Name == "main.go" {
			assert.Equal(t, int64(len("package main\n")), e.Size)
			assert.Equal(t, "/src/main.go", e.Path)
		}
	}
}

func TestLocal_ReadDirErrors(t *testing.T) {
	t.Parallel()
	l := memLocal(t)

	_, err := l.ReadDir(context.Background(), "/missing")
	assert.ErrorIs(t, err, codetree.ErrNotExist)

	_, err = l.ReadDir(context.Background(), "/README.md")
	assert.ErrorIs(t, err, codetree.ErrNotDirectory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.ReadDir(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_ConfinedToRoot(t *testing.T) {
	t.Parallel()
	l := memLocal(t)

	_, err := l.Stat(context.Background(), "/../outside.txt")
	assert.ErrorIs(t, err, codetree.ErrNotExist)
}

func TestLocal_StatOpenCreate(t *testing.T) {
	t.Parallel()
	l := memLocal(t)
	ctx := context.Background()

	e, err := l.Stat(ctx, "/src")
	require.NoError(t, err)
	assert.True(t, e.IsDir())

	_, err = l.Open(ctx, "/src")
	assert.ErrorContains(t, err, "is a directory")

	w, err := l.Create(ctx, "/docs/new.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := l.Open(ctx, "/docs/new.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(data))

	e, err = l.Stat(ctx, "/docs/new.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), e.Size)
	assert.WithinDuration(t, time.Now(), e.ModTime, time.Minute)
}

func TestLocal_PathMapping(t *testing.T) {
	t.Parallel()
	root := filepath.Join(string(filepath.Separator), "ws")
	l := NewLocal(afero.NewMemMapFs(), root)

	assert.Equal(t, filepath.Join(root, "src", "a.go"), l.OSPath("/src/a.go"))
	assert.Equal(t, root, l.OSPath("/"))

	p, ok := l.EntryPath(filepath.Join(root, "src", "a.go"))
	assert.True(t, ok)
	assert.Equal(t, "/src/a.go", p)

	p, ok = l.EntryPath(root)
	assert.True(t, ok)
	assert.Equal(t, "/", p)

	_, ok = l.EntryPath(filepath.Join(string(filepath.Separator), "other"))
	assert.False(t, ok)
}

func TestLocalSource_Provider(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))

	p, err := (&LocalSource{Root: dir}).Provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, p.Root())

	entries, err := p.ReadDir(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f.txt", entries[0].Name)

	_, err = (&LocalSource{Root: filepath.Join(dir, "f.txt")}).Provider(context.Background())
	assert.ErrorIs(t, err, codetree.ErrNotDirectory)

	_, err = (&LocalSource{}).Provider(context.Background())
	assert.Error(t, err)

	_, err = (&LocalSource{Root: filepath.Join(dir, "missing")}).Provider(context.Background())
	assert.Error(t, err)
}

func TestLocal_ReadDirFollowsSymlinks(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "real", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real", "a.go"), []byte("package a\n"), 0o644))
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "linked")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "real", "a.go"), filepath.Join(dir, "a-link.go")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "dangling")))

	l := NewLocal(afero.NewOsFs(), dir)
	entries, err := l.ReadDir(context.Background(), "/")
	require.NoError(t, err)

	got := map[string]codetree.EntryKind{}
	for _, e := range entries {
		got[e.Path] = e.Kind
	}
	assert.Equal(t, map[string]codetree.EntryKind{
		"/real":      codetree.KindDir,
		"/linked":    codetree.KindDir,
		"/a-link.go": codetree.KindFile,
		"/dangling":  codetree.KindFile,
	}, got)

	children, err := l.ReadDir(context.Background(), "/linked")
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

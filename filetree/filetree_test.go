package filetree

import (
	"context"
	"testing"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/dircache"
	"github.com/brettbedarf/codetree/internal/mocks"
	"github.com/brettbedarf/codetree/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dir(p string) codetree.Entry {
	return codetree.NewEntry(p, codetree.KindDir)
}

func file(p string) codetree.Entry {
	return codetree.NewEntry(p, codetree.KindFile)
}

func setup(t *testing.T) (*mocks.MockStorageProvider, *dircache.Cache) {
	t.Helper()
	mp := &mocks.MockStorageProvider{}
	mp.On("ReadDir", mock.Anything, "/root").Return(
		[]codetree.Entry{dir("/root/b"), file("/root/z.txt"), dir("/root/a")}, nil,
	)
	mp.On("ReadDir", mock.Anything, "/root/a").Return([]codetree.Entry{file("/root/a/x.go")}, nil)
	mp.On("ReadDir", mock.Anything, "/root/b").Return([]codetree.Entry{}, nil)
	c := dircache.New(mp, dircache.WithMaxDepth(1))
	t.Cleanup(c.Close)
	return mp, c
}

func TestFetchChildren_LoadsWhenEmpty(t *testing.T) {
	t.Parallel()
	mp, c := setup(t)
	gen := NewGenerator(dir("/root"), c)

	root := gen.CreateRootNode()
	children, err := gen.FetchChildren(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []codetree.Entry{dir("/root/a"), dir("/root/b"), file("/root/z.txt")}, children)
	assert.Equal(t, dircache.Loaded, c.State("/root"))

	// served from the cache the second time
	_, err = gen.FetchChildren(context.Background(), root)
	require.NoError(t, err)
	mp.AssertNumberOfCalls(t, "ReadDir", 1)
}

func TestFetchChildren_Deduplicates(t *testing.T) {
	t.Parallel()
	mp := &mocks.MockStorageProvider{}
	mp.On("ReadDir", mock.Anything, "/d").Return(
		[]codetree.Entry{file("/d/b"), file("/d/a"), file("/d/b")}, nil,
	)
	c := dircache.New(mp, dircache.WithMaxDepth(1))
	defer c.Close()
	gen := NewGenerator(dir("/d"), c)

	children, err := gen.FetchChildren(context.Background(), gen.CreateRootNode())
	require.NoError(t, err)
	assert.Equal(t, []codetree.Entry{file("/d/a"), file("/d/b")}, children)
}

func TestFetchChildren_Cancelled(t *testing.T) {
	t.Parallel()
	_, c := setup(t)
	gen := NewGenerator(dir("/root"), c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.FetchChildren(ctx, gen.CreateRootNode())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateRootNode(t *testing.T) {
	t.Parallel()
	_, c := setup(t)
	root := NewGenerator(codetree.Entry{Path: "root"}, c).CreateRootNode()

	assert.Equal(t, tree.RootDepth, root.Depth())
	assert.Equal(t, tree.RootID, root.ID())
	assert.True(t, root.Expandable(), "root is expandable before anything is loaded")
	assert.Equal(t, "/root", root.Data.Path)
	assert.Equal(t, "root", root.Name())
	assert.True(t, root.Data.IsDir())
}

func TestCreateNode_HasChildrenFromCache(t *testing.T) {
	t.Parallel()
	_, c := setup(t)
	ft := New(dir("/root"), c)
	ctx := context.Background()

	require.NoError(t, ft.Expand(ctx, ft.Root()))
	a, ok := ft.Find("/root/a")
	require.True(t, ok)
	assert.True(t, a.Expandable())
	assert.False(t, a.HasChildren(), "never loaded, so no children known yet")
	assert.Equal(t, 0, a.Depth())

	z, ok := ft.Find("/root/z.txt")
	require.True(t, ok)
	assert.False(t, z.Expandable())
	assert.False(t, z.HasChildren())

	// once /root/a is cached, new nodes for it know about its children
	_, err := c.Load(ctx, "/root/a")
	require.NoError(t, err)
	require.NoError(t, ft.Refresh(ctx, ft.Root()))
	a, ok = ft.Find("/root/a")
	require.True(t, ok)
	assert.True(t, a.HasChildren())
}

func TestNew_OrderedTree(t *testing.T) {
	t.Parallel()
	_, c := setup(t)
	ft := New(dir("/root"), c)

	require.NoError(t, ft.ExpandAll(context.Background(), 2))
	var paths []string
	for _, n := range ft.Visible() {
		paths = append(paths, n.Data.Path)
	}
	assert.Equal(t, []string{"/root/a", "/root/a/x.go", "/root/b", "/root/z.txt"}, paths)
}

func TestTree_ReflectsCacheMutations(t *testing.T) {
	t.Parallel()
	_, c := setup(t)
	ft := New(dir("/root"), c)
	ctx := context.Background()
	require.NoError(t, ft.Expand(ctx, ft.Root()))

	require.NoError(t, c.Create(file("/root/m.txt")))
	require.True(t, c.Invalidate(dir("/root/b")))

	// nodes do not change until refreshed
	assert.Len(t, ft.Visible(), 3)

	require.NoError(t, ft.Refresh(ctx, ft.Root()))
	var names []string
	for _, n := range ft.Visible() {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"a", "m.txt", "z.txt"}, names)
}

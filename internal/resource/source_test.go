package resource

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSSource(t *testing.T) {
	src := NewFSSource(fstest.MapFS{
		"resources/mylib/1.0/app.js": file("one"),
		"resources/app.js":           file("root"),
	}, "")
	ctx := context.Background()

	ok, err := src.Exists(ctx, "/resources/mylib")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = src.Exists(ctx, "/resources/nothing")
	require.NoError(t, err)
	assert.False(t, ok)

	children, err := src.List(ctx, "/resources")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/resources/app.js", "/resources/mylib/"}, children)

	children, err = src.List(ctx, "/resources/app.js")
	require.NoError(t, err)
	assert.Nil(t, children)

	assert.Equal(t, "one", readAll(t, must(src.Open(ctx, "/resources/mylib/1.0/app.js"))))
	_, err = src.Open(ctx, "/resources/mylib")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	_, err = src.Open(ctx, "/resources/missing.js")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	st, err := src.Stat(ctx, "/resources/app.js")
	require.NoError(t, err)
	assert.EqualValues(t, 4, st.Size)

	u, err := src.URL("/resources/app.js")
	require.NoError(t, err)
	assert.Equal(t, "webapp:///resources/app.js", u.String())
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "resources"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources", "app.js"), []byte("x"), 0o644))

	src, err := DirSource(dir)
	require.NoError(t, err)
	ok, err := src.Exists(context.Background(), "/resources/app.js")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := src.URL("/resources/app.js")
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "resources", "app.js")), u.Path)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

package resource

import (
	"context"
	"net/http"
	"testing"
	"testing/fstest"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/special-stack/reslib/internal/config"
)

var modTime = time.Date(2024, 3, 14, 15, 9, 26, 535_000_000, time.UTC)

func newTestHandler(t *testing.T, fsys fstest.MapFS, mutate func(*config.Config)) (*Handler, *testclock.Clock) {
	t.Helper()
	cfg := testConfig(mutate)
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewManager(cfg, NewFSSource(fsys, ""), nil, clk, discardLogger())
	return NewHandler(cfg, m, clk, discardLogger()), clk
}

func TestRequestPath(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{
		"resources/mylib/2.3/style.css": file("x"),
		"resources/de/app.js":           file("x"),
		"contracts/dark/theme.css":      file("x"),
	}, nil)
	ctx := context.Background()

	r, err := h.CreateResource(ctx, nil, "style.css", "mylib", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "/jakarta.faces.resource/style.css?ln=mylib&v=2.3", r.RequestPath())

	r, err = h.CreateResource(ctx, &RequestState{LocalePrefix: "de"}, "app.js", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "/jakarta.faces.resource/app.js?loc=de", r.RequestPath())

	r, err = h.CreateResource(ctx, &RequestState{HasView: true, Contracts: []string{"dark"}}, "theme.css", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "/jakarta.faces.resource/theme.css?con=dark", r.RequestPath())
}

func TestRequestPathWithSuffixMappingAndStage(t *testing.T) {
	fsys := fstest.MapFS{
		"resources/jakarta.faces/faces.js":              file("x"),
		"resources/jakarta.faces/faces-uncompressed.js": file("x"),
	}
	h, _ := newTestHandler(t, fsys, func(cfg *config.Config) {
		cfg.Stage = config.Development
		cfg.MappingSuffix = ".xhtml"
	})
	r, err := h.CreateResource(context.Background(), nil, FacesScriptResource, FacesScriptLibrary, "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "/jakarta.faces.resource/faces.js.xhtml?ln=jakarta.faces&stage=Development", r.RequestPath())

	h, _ = newTestHandler(t, fsys, nil)
	r, err = h.CreateResource(context.Background(), nil, FacesScriptResource, FacesScriptLibrary, "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "/jakarta.faces.resource/faces.js?ln=jakarta.faces", r.RequestPath())
}

func TestUserAgentNeedsUpdate(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{
		"resources/app.js": &fstest.MapFile{Data: []byte("x"), ModTime: modTime},
	}, nil)
	ctx := context.Background()

	r, err := h.CreateResource(ctx, nil, "app.js", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)

	truncated := modTime.Truncate(time.Second)
	assert.False(t, r.UserAgentNeedsUpdate(ctx, truncated.Format(http.TimeFormat)))
	assert.False(t, r.UserAgentNeedsUpdate(ctx, truncated.Add(time.Hour).Format(http.TimeFormat)))
	assert.True(t, r.UserAgentNeedsUpdate(ctx, truncated.Add(-time.Second).Format(http.TimeFormat)))
	assert.True(t, r.UserAgentNeedsUpdate(ctx, ""))
	assert.True(t, r.UserAgentNeedsUpdate(ctx, "yesterday"))
}

func TestUserAgentNeedsUpdateWithoutModTime(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{
		"resources/app.js": file("x"),
	}, nil)
	ctx := context.Background()

	r, err := h.CreateResource(ctx, nil, "app.js", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)

	created := h.CreationTime()
	assert.False(t, r.UserAgentNeedsUpdate(ctx, created.Format(http.TimeFormat)))
	assert.True(t, r.UserAgentNeedsUpdate(ctx, created.Add(-time.Minute).Format(http.TimeFormat)))
}

func TestViewsAlwaysNeedUpdate(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{
		"index.xhtml": &fstest.MapFile{Data: []byte("x"), ModTime: modTime},
	}, nil)
	ctx := context.Background()

	r, err := h.CreateViewResource(ctx, nil, "/index.xhtml")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.UserAgentNeedsUpdate(ctx, modTime.Add(time.Hour).Format(http.TimeFormat)))
}

func TestResponseHeaders(t *testing.T) {
	fsys := fstest.MapFS{
		"resources/app.js": &fstest.MapFile{Data: []byte("12345"), ModTime: modTime},
	}
	h, _ := newTestHandler(t, fsys, nil)
	ctx := context.Background()

	r, err := h.CreateResource(ctx, nil, "app.js", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	headers := r.ResponseHeaders(ctx)
	assert.Equal(t, "max-age=604800", headers.Get("Cache-Control"))
	assert.Equal(t, modTime.Format(http.TimeFormat), headers.Get("Last-Modified"))
	assert.Equal(t, `W/"5-1710428966535"`, headers.Get("ETag"))

	h, _ = newTestHandler(t, fsys, func(cfg *config.Config) { cfg.Stage = config.Development })
	r, err = h.CreateResource(ctx, nil, "app.js", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "no-store, must-revalidate", r.ResponseHeaders(ctx).Get("Cache-Control"))
}

func TestResponseHeadersFallBackToCreationTime(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{
		"resources/app.js": file("x"),
	}, nil)
	ctx := context.Background()

	r, err := h.CreateResource(ctx, nil, "app.js", "", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, h.CreationTime().Format(http.TimeFormat), r.ResponseHeaders(ctx).Get("Last-Modified"))
}

func TestCreateResourceFromID(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{
		"resources/mylib/app.js": file("x"),
	}, nil)

	r, err := h.CreateResourceFromID(context.Background(), nil, "mylib/app.js")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "mylib", r.LibraryName())
	assert.Equal(t, "app.js", r.Name())

	r, err = h.CreateResourceFromID(context.Background(), nil, "missing/app.js")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestCreateResourceRejectsEmptyName(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{}, nil)
	_, err := h.CreateResource(context.Background(), nil, "", "", "")
	assert.Error(t, err)
}

func TestHandlerRequestMatching(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{}, func(cfg *config.Config) { cfg.MappingSuffix = ".faces" })

	name, ok := h.ResourceName("/jakarta.faces.resource/style.css.faces")
	require.True(t, ok)
	assert.Equal(t, "style.css", name)
	assert.True(t, h.IsResourceRequest("/jakarta.faces.resource/img/logo.png"))
	assert.False(t, h.IsResourceRequest("/index.xhtml"))
	assert.False(t, h.IsResourceRequest("/jakarta.faces.resource/"))

	assert.True(t, h.IsExcluded("page.xhtml"))
	assert.True(t, h.IsExcluded("secrets.properties"))
	assert.False(t, h.IsExcluded("style.css"))
}

func TestRendererTypeForResourceName(t *testing.T) {
	h, _ := newTestHandler(t, fstest.MapFS{}, nil)
	assert.Equal(t, ScriptRendererType, h.RendererTypeForResourceName("app.js"))
	assert.Equal(t, StylesheetRendererType, h.RendererTypeForResourceName("site.css"))
	assert.Empty(t, h.RendererTypeForResourceName("logo.png"))
}

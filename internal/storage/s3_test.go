package storage

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/special-stack/reslib/internal/config"
)

func newTestSource(t *testing.T, prefix string) *BucketSource {
	t.Helper()
	client, err := NewClient(&config.StorageConfig{Endpoint: "localhost:9000"})
	require.NoError(t, err)
	return NewBucketSource(client, "webapp", prefix)
}

func TestObjectKeyMapping(t *testing.T) {
	s := newTestSource(t, "/site/")

	assert.Equal(t, "site/resources/app.js", s.objectKey("/resources/app.js"))
	assert.Equal(t, "site/resources/app.js", s.objectKey("resources/app.js"))
	assert.Equal(t, "site/", s.objectKey("/"))
	assert.Equal(t, "site/resources/mylib/", s.dirKey("/resources/mylib"))
	assert.Equal(t, "site/resources/mylib/", s.dirKey("/resources/mylib/"))

	p, ok := s.webappPath("site/resources/mylib/2.3/")
	require.True(t, ok)
	assert.Equal(t, "/resources/mylib/2.3/", p)
	_, ok = s.webappPath("other/app.js")
	assert.False(t, ok)
}

func TestObjectKeyWithoutPrefix(t *testing.T) {
	s := newTestSource(t, "")

	assert.Equal(t, "resources/app.js", s.objectKey("/resources/app.js"))
	assert.Equal(t, "", s.dirKey("/"))
	p, ok := s.webappPath("index.xhtml")
	require.True(t, ok)
	assert.Equal(t, "/index.xhtml", p)
}

func TestObjectKeyCleansTraversal(t *testing.T) {
	s := newTestSource(t, "site")
	assert.Equal(t, "site/secret", s.objectKey("/resources/../../secret"))
}

func TestURL(t *testing.T) {
	s := newTestSource(t, "site")
	u, err := s.URL("/resources/app.js")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/webapp/site/resources/app.js", u.String())
}

func TestMapErrorNotFound(t *testing.T) {
	s := newTestSource(t, "")
	err := s.mapError("open", "/resources/app.js", minio.ErrorResponse{Code: "NoSuchKey"})
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	err = s.mapError("open", "/resources/app.js", minio.ErrorResponse{Code: "AccessDenied"})
	assert.False(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "/resources/app.js")
}

func TestStatUnreachableReportsUnknownSize(t *testing.T) {
	client, err := NewClient(&config.StorageConfig{Endpoint: "127.0.0.1:1"})
	require.NoError(t, err)
	s := NewBucketSource(client, "webapp", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := s.Stat(ctx, "/resources/app.js")
	assert.Error(t, err)
	assert.EqualValues(t, -1, st.Size)
}

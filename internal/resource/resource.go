package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/muandane/special-stack/reslib/internal/config"
)

// Resource is a resolved resource bound to the settings of the handler that
// created it.
type Resource struct {
	info        *ResourceInfo
	name        string
	libraryName string
	contentType string
	handler     *Handler
}

func (r *Resource) Info() *ResourceInfo    { return r.info }
func (r *Resource) Name() string           { return r.name }
func (r *Resource) LibraryName() string    { return r.libraryName }
func (r *Resource) ContentType() string    { return r.contentType }
func (r *Resource) String() string         { return r.info.String() }
func (r *Resource) IsView() bool           { return r.info.view }
func (r *Resource) Helper() Helper         { return r.info.helper }
func (r *Resource) CompressedPath() string { return r.info.compressedPath }

// RequestPath returns the URL clients use to fetch the resource:
// {prefix}/{name}{suffix} followed by ln, v, loc, con and stage when set.
func (r *Resource) RequestPath() string {
	h := r.handler
	var b strings.Builder
	b.WriteString(h.prefix)
	b.WriteByte('/')
	b.WriteString(r.name)
	b.WriteString(h.suffix)

	sep := byte('?')
	add := func(k, v string) {
		b.WriteByte(sep)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
		sep = '&'
	}

	if r.libraryName != "" {
		add("ln", r.libraryName)
	}
	var version string
	if lib := r.info.library; lib != nil && lib.version != nil {
		version += lib.version.String()
	}
	if r.info.version != nil {
		version += r.info.version.String()
	}
	if version != "" {
		add("v", version)
	}
	if r.info.localePrefix != "" {
		add("loc", r.info.localePrefix)
	}
	if r.info.contract != "" {
		add("con", r.info.contract)
	}
	if r.name == FacesScriptResource && r.libraryName == FacesScriptLibrary && h.stage != config.Production {
		add("stage", string(h.stage))
	}
	return b.String()
}

// ResponseHeaders returns the caching headers sent with the resource body.
func (r *Resource) ResponseHeaders(ctx context.Context) http.Header {
	h := r.handler
	headers := make(http.Header, 3)
	if h.stage == config.Development {
		headers.Set("Cache-Control", "no-store, must-revalidate")
	} else {
		headers.Set("Cache-Control", fmt.Sprintf("max-age=%d", int64(h.maxAge/time.Second)))
	}

	st := r.info.helper.Stat(ctx, r.info)
	lastModified := r.info.LastModified(ctx)
	if lastModified.IsZero() {
		lastModified = h.creationTime
	}
	headers.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	if !lastModified.IsZero() && st.Size >= 0 {
		headers.Set("ETag", fmt.Sprintf(`W/"%d-%d"`, st.Size, lastModified.UnixMilli()))
	}
	return headers
}

// UserAgentNeedsUpdate reports whether the body must be sent to a client that
// presented ifModifiedSince. The modification time is compared at second
// precision. When it is unknown the handler's creation time stands in for
// it. Views and unparsable headers always need an update.
func (r *Resource) UserAgentNeedsUpdate(ctx context.Context, ifModifiedSince string) bool {
	if r.info.view || ifModifiedSince == "" {
		return true
	}
	since, err := http.ParseTime(ifModifiedSince)
	if err != nil {
		r.handler.logger.Warn("invalid If-Modified-Since header",
			"value", ifModifiedSince,
			"error", err,
		)
		return true
	}
	lastModified := r.info.LastModified(ctx).Truncate(time.Second)
	if lastModified.IsZero() {
		return r.handler.creationTime.After(since)
	}
	return lastModified.After(since)
}

// Open returns the body and its content encoding.
func (r *Resource) Open(ctx context.Context, state *RequestState) (io.ReadCloser, string, error) {
	return r.info.helper.Open(ctx, state, r.info)
}

func (r *Resource) URL(ctx context.Context) (*url.URL, error) {
	return r.info.helper.URL(ctx, r.info)
}

package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/juju/errors"

	"github.com/muandane/special-stack/reslib/internal/config"
	"github.com/muandane/special-stack/reslib/internal/resource"
)

// ResourceHandler serves resource requests under the configured prefix.
type ResourceHandler struct {
	resources  *resource.Handler
	stats      *StatsHandler
	bufferSize int
	logger     *slog.Logger
}

func NewResourceHandler(resources *resource.Handler, stats *StatsHandler, cfg *config.Config, logger *slog.Logger) (*ResourceHandler, error) {
	if resources == nil {
		return nil, errors.NotValidf("nil resource handler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = config.DefaultBufferSize
	}
	if stats == nil {
		stats = NewStatsHandler(nil)
	}
	return &ResourceHandler{
		resources:  resources,
		stats:      stats,
		bufferSize: bufferSize,
		logger:     logger,
	}, nil
}

// RequestState derives the per-request resolution inputs from r.
func RequestState(r *http.Request) *resource.RequestState {
	q := r.URL.Query()
	return &resource.RequestState{
		LocalePrefix: q.Get("loc"),
		Params:       q,
		AcceptsGzip:  acceptsGzip(r.Header.Get("Accept-Encoding")),
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		params = strings.ReplaceAll(params, " ", "")
		return params != "q=0" && params != "q=0.0" && params != "q=0.00" && params != "q=0.000"
	}
	return false
}

func (h *ResourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	name, ok := h.resources.ResourceName(r.URL.Path)
	if !ok {
		h.notFound(w, r)
		return
	}
	libraryName := r.URL.Query().Get("ln")

	logger := h.logger.With(
		"method", r.Method,
		"resource", name,
		"library", libraryName,
		"remote_addr", r.RemoteAddr,
	)

	if h.resources.IsExcluded(name) {
		logger.Debug("resource is excluded")
		h.notFound(w, r)
		return
	}
	if libraryName != "" && !resource.LibraryNameIsSafe(libraryName) {
		logger.Debug("rejecting unsafe library name")
		h.notFound(w, r)
		return
	}

	ctx := r.Context()
	state := RequestState(r)
	res, err := h.resources.CreateResource(ctx, state, name, libraryName, "")
	if err != nil {
		logger.Error("resource lookup failed", "error", err)
		h.stats.RecordError()
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if res == nil {
		h.resources.LogMissingResource(ctx, name, libraryName, nil)
		h.notFound(w, r)
		return
	}

	if !res.UserAgentNeedsUpdate(ctx, r.Header.Get("If-Modified-Since")) {
		for k, v := range res.ResponseHeaders(ctx) {
			w.Header()[k] = v
		}
		w.WriteHeader(http.StatusNotModified)
		h.stats.RecordNotModified()
		logger.Debug("resource not modified", "duration", time.Since(start).String())
		return
	}

	n, err := h.send(ctx, w, r, res, state)
	if err != nil {
		if isDisconnect(ctx, err) {
			logger.Debug("client went away while serving resource", "error", err)
		} else {
			h.resources.LogMissingResource(ctx, name, libraryName, err)
		}
		return
	}

	h.stats.RecordServed(n)
	logger.Debug("resource served",
		"path", res.Info().Path(),
		"size", n,
		"duration", time.Since(start).String(),
	)
}

// send streams the body. Failures before the first byte answer 404; later
// failures can only be reported, since the status line is already out.
func (h *ResourceHandler) send(ctx context.Context, w http.ResponseWriter, r *http.Request, res *resource.Resource, state *resource.RequestState) (int64, error) {
	rc, encoding, err := res.Open(ctx, state)
	if err != nil {
		h.notFound(w, r)
		return 0, err
	}
	defer rc.Close()

	buf := make([]byte, h.bufferSize)
	first, err := io.ReadFull(rc, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		h.notFound(w, r)
		return 0, errors.Annotatef(err, "reading %s", res.Info().Path())
	}

	header := w.Header()
	for k, v := range res.ResponseHeaders(ctx) {
		header[k] = v
	}
	contentType := res.ContentType()
	if contentType == "" {
		if encoding == "" {
			contentType = mimetype.Detect(buf[:first]).String()
		} else {
			contentType = "application/octet-stream"
		}
	}
	header.Set("Content-Type", contentType)
	if res.Info().Compressible() {
		header.Add("Vary", "Accept-Encoding")
	}
	if encoding != "" {
		header.Set("Content-Encoding", encoding)
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return 0, nil
	}

	written, err := w.Write(buf[:first])
	total := int64(written)
	if err != nil || first < len(buf) {
		return total, err
	}
	copied, err := io.CopyBuffer(w, rc, buf)
	return total + copied, err
}

func (h *ResourceHandler) notFound(w http.ResponseWriter, r *http.Request) {
	h.stats.RecordNotFound()
	http.NotFound(w, r)
}

func isDisconnect(ctx context.Context, err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}

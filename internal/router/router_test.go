package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/special-stack/reslib/internal/config"
	"github.com/muandane/special-stack/reslib/internal/handlers"
	"github.com/muandane/special-stack/reslib/internal/middleware"
	"github.com/muandane/special-stack/reslib/internal/resource"
)

func setup(t *testing.T, mutate func(*config.Config), check func(context.Context) error) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.TempDir = ""
	if mutate != nil {
		mutate(cfg)
	}
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fsys := fstest.MapFS{
		"resources/mylib/1.0/app.js": {Data: []byte("v1")},
		"resources/mylib/2.3/app.js": {Data: []byte("v2")},
		"index.xhtml":                {Data: []byte("<html/>")},
	}
	manager := resource.NewManager(cfg, resource.NewFSSource(fsys, ""), nil, clk, logger)
	resources := resource.NewHandler(cfg, manager, clk, logger)
	stats := handlers.NewStatsHandler(manager.Cache().Stats)
	rh, err := handlers.NewResourceHandler(resources, stats, cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(logger).Setup(cfg, Handlers{
		Resources:   rh,
		API:         handlers.NewAPI(resources),
		Stats:       stats,
		Health:      handlers.NewHealthHandler(logger, check),
		RateLimiter: middleware.NewRateLimiter(ctx, cfg.RateLimit, cfg.RateBurst, clk),
	})
}

func request(h http.Handler, method, target, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := setup(t, nil, nil)

	rec := request(h, http.MethodGet, "/jakarta.faces.resource/app.js?ln=mylib", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	assert.Equal(t, http.StatusOK, request(h, http.MethodHead, "/jakarta.faces.resource/app.js?ln=mylib", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, request(h, http.MethodPost, "/jakarta.faces.resource/app.js", "").Code)
	assert.Equal(t, http.StatusNotFound, request(h, http.MethodGet, "/jakarta.faces.resource/app.js?ln=../mylib", "").Code)
	assert.Equal(t, http.StatusNotFound, request(h, http.MethodGet, "/nowhere", "").Code)

	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/stats", "").Code)
	assert.Contains(t, request(h, http.MethodGet, "/metrics", "").Body.String(), "http_requests_total")

	rec = request(h, http.MethodGet, "/api/libraries/mylib", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"library":"mylib","exists":true}`, rec.Body.String())

	rec = request(h, http.MethodGet, "/api/resources?name=app.js&ln=mylib", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"library_version":"2.3"`)

	rec = request(h, http.MethodGet, "/api/views", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/index.xhtml")
}

func TestHealthReportsCheckFailure(t *testing.T) {
	h := setup(t, nil, func(context.Context) error { return errors.New("bucket gone") })
	assert.Equal(t, http.StatusServiceUnavailable, request(h, http.MethodGet, "/health", "").Code)
}

func TestAdminEndpointsHonorAllowList(t *testing.T) {
	h := setup(t, func(cfg *config.Config) { cfg.AdminAllowedIPs = []string{"10.0.0.0/8"} }, nil)

	assert.Equal(t, http.StatusForbidden, request(h, http.MethodGet, "/api/views", "192.168.1.1:1000").Code)
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/views", "10.2.3.4:1000").Code)
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/jakarta.faces.resource/app.js?ln=mylib", "192.168.1.1:1000").Code)
}

func TestRateLimitApplies(t *testing.T) {
	h := setup(t, func(cfg *config.Config) {
		cfg.RateLimit = 1
		cfg.RateBurst = 1
	}, nil)

	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/health", "10.9.9.9:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(h, http.MethodGet, "/health", "10.9.9.9:1").Code)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/muandane/special-stack/reslib/internal/cache"
)

type ServeStats struct {
	Served      uint64 `json:"served"`
	NotModified uint64 `json:"not_modified"`
	NotFound    uint64 `json:"not_found"`
	Errors      uint64 `json:"errors"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesHuman  string `json:"bytes_sent_human"`
}

type StatsReport struct {
	Cache   *cache.Stats `json:"cache,omitempty"`
	Serve   ServeStats   `json:"serve"`
	Started time.Time    `json:"started"`
	Uptime  string       `json:"uptime"`
}

type StatsHandler struct {
	cacheStats  func() cache.Stats
	started     time.Time
	served      atomic.Uint64
	notModified atomic.Uint64
	notFound    atomic.Uint64
	errors      atomic.Uint64
	bytesSent   atomic.Uint64
}

// NewStatsHandler reports serving counters together with the descriptor
// cache statistics returned by cacheStats, which may be nil.
func NewStatsHandler(cacheStats func() cache.Stats) *StatsHandler {
	return &StatsHandler{
		cacheStats: cacheStats,
		started:    time.Now(),
	}
}

func (h *StatsHandler) RecordServed(size int64) {
	h.served.Add(1)
	if size > 0 {
		h.bytesSent.Add(uint64(size))
	}
}

func (h *StatsHandler) RecordNotModified() { h.notModified.Add(1) }
func (h *StatsHandler) RecordNotFound()    { h.notFound.Add(1) }
func (h *StatsHandler) RecordError()       { h.errors.Add(1) }

func (h *StatsHandler) Report() StatsReport {
	sent := h.bytesSent.Load()
	report := StatsReport{
		Serve: ServeStats{
			Served:      h.served.Load(),
			NotModified: h.notModified.Load(),
			NotFound:    h.notFound.Load(),
			Errors:      h.errors.Load(),
			BytesSent:   sent,
			BytesHuman:  humanize.Bytes(sent),
		},
		Started: h.started,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.cacheStats != nil {
		cs := h.cacheStats()
		report.Cache = &cs
	}
	return report
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Report())
}

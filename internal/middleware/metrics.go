package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

type MetricsMiddleware struct {
	prefix             string
	requestCounter     *metrics.Counter
	resourceCounter    *metrics.Counter
	responseTimeHist   *metrics.Histogram
	responseSizeHist   *metrics.Histogram
	statusCodeCounters map[int]*metrics.Counter
}

// NewMetricsMiddleware counts requests, and separately those under the
// resource prefix. Metrics are shared process wide so several instances may
// coexist.
func NewMetricsMiddleware(resourcePrefix string) *MetricsMiddleware {
	m := &MetricsMiddleware{
		prefix:             resourcePrefix,
		requestCounter:     metrics.GetOrCreateCounter("http_requests_total"),
		resourceCounter:    metrics.GetOrCreateCounter("resource_requests_total"),
		responseTimeHist:   metrics.GetOrCreateHistogram("http_response_time_seconds"),
		responseSizeHist:   metrics.GetOrCreateHistogram("http_response_size_bytes"),
		statusCodeCounters: make(map[int]*metrics.Counter),
	}

	for _, code := range []int{200, 304, 400, 403, 404, 405, 429, 500, 503} {
		m.statusCodeCounters[code] = metrics.GetOrCreateCounter(
			`http_response_status_total{code="` + strconv.Itoa(code) + `"}`,
		)
	}

	return m
}

func (m *MetricsMiddleware) WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := newLoggingResponseWriter(w)

		m.requestCounter.Inc()
		if isUnder(r.URL.Path, m.prefix) {
			m.resourceCounter.Inc()
		}
		next.ServeHTTP(lrw, r)

		m.responseTimeHist.UpdateDuration(start)
		if counter, exists := m.statusCodeCounters[lrw.statusCode]; exists {
			counter.Inc()
		}
		m.responseSizeHist.Update(float64(lrw.length))
	})
}

func (m *MetricsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w, true)
}

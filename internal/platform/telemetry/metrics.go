// Package telemetry records request and extraction metrics and serves them
// in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsPath is where Handler is mounted.
const MetricsPath = "/metrics"

// Model calls dominate latency, so the buckets reach well past a minute.
var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// histogram keeps non-cumulative bucket counts; export makes them cumulative.
type histogram struct {
	mu      sync.Mutex
	buckets []int64
	count   int64
	sum     float64
}

func newHistogram() *histogram {
	return &histogram{buckets: make([]int64, len(durationBuckets))}
}

func (h *histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range durationBuckets {
		if v <= b {
			h.buckets[i]++
			return
		}
	}
}

type histogramSnapshot struct {
	cumulative []int64
	count      int64
	sum        float64
}

func (h *histogram) snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := histogramSnapshot{cumulative: make([]int64, len(h.buckets)), count: h.count, sum: h.sum}
	var running int64
	for i, c := range h.buckets {
		running += c
		s.cumulative[i] = running
	}
	return s
}

type requestKey struct {
	method, route, status string
}

type outcomeKey struct {
	op, outcome string
}

// PoolStats reports database pool gauges at scrape time.
type PoolStats func() (acquired, idle, total int32)

// Metrics is safe for concurrent use.
type Metrics struct {
	active atomic.Int64

	mu       sync.RWMutex
	requests map[requestKey]*histogram
	outcomes map[outcomeKey]int64

	pool PoolStats
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[requestKey]*histogram),
		outcomes: make(map[outcomeKey]int64),
	}
}

// SetPoolStats adds database pool gauges to the exposition.
func (m *Metrics) SetPoolStats(f PoolStats) {
	m.pool = f
}

// ObserveExtraction counts one function call by operation and outcome. It
// satisfies extraction.OutcomeObserver.
func (m *Metrics) ObserveExtraction(op, outcome string) {
	m.mu.Lock()
	m.outcomes[outcomeKey{op, outcome}]++
	m.mu.Unlock()
}

// ExtractionCount returns how many calls of op ended with outcome.
func (m *Metrics) ExtractionCount(op, outcome string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outcomes[outcomeKey{op, outcome}]
}

func (m *Metrics) requestHistogram(k requestKey) *histogram {
	m.mu.RLock()
	h, ok := m.requests[k]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.requests[k]; !ok {
		h = newHistogram()
		m.requests[k] = h
	}
	return h
}

// Middleware records the duration of every request by method, route pattern
// and status. Scrapes of MetricsPath are not recorded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == MetricsPath {
				return next(c)
			}

			m.active.Add(1)
			start := time.Now()
			err := next(c)
			m.active.Add(-1)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			// Unmatched paths share one series.
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requestHistogram(requestKey{c.Request().Method, route, fmt.Sprint(status)}).
				observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the exposition text.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, m.expose())
	}
}

func (m *Metrics) expose() string {
	var b strings.Builder

	m.mu.RLock()
	reqKeys := make([]requestKey, 0, len(m.requests))
	for k := range m.requests {
		reqKeys = append(reqKeys, k)
	}
	snaps := make(map[requestKey]histogramSnapshot, len(m.requests))
	for _, k := range reqKeys {
		snaps[k] = m.requests[k].snapshot()
	}
	outKeys := make([]outcomeKey, 0, len(m.outcomes))
	outcomes := make(map[outcomeKey]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outKeys = append(outKeys, k)
		outcomes[k] = v
	}
	m.mu.RUnlock()

	sort.Slice(reqKeys, func(i, j int) bool {
		a, c := reqKeys[i], reqKeys[j]
		if a.route != c.route {
			return a.route < c.route
		}
		if a.method != c.method {
			return a.method < c.method
		}
		return a.status < c.status
	})
	sort.Slice(outKeys, func(i, j int) bool {
		if outKeys[i].op != outKeys[j].op {
			return outKeys[i].op < outKeys[j].op
		}
		return outKeys[i].outcome < outKeys[j].outcome
	})

	const reqName = "http_server_request_duration_seconds"
	b.WriteString("# HELP " + reqName + " Duration of HTTP requests in seconds.\n")
	b.WriteString("# TYPE " + reqName + " histogram\n")
	for _, k := range reqKeys {
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", k.method, k.route, k.status)
		writeHistogram(&b, reqName, labels, snaps[k])
	}
	b.WriteByte('\n')

	b.WriteString("# HELP http_server_active_requests Number of requests in flight.\n")
	b.WriteString("# TYPE http_server_active_requests gauge\n")
	fmt.Fprintf(&b, "http_server_active_requests %d\n\n", m.active.Load())

	b.WriteString("# HELP extraction_calls_total Function calls by operation and outcome.\n")
	b.WriteString("# TYPE extraction_calls_total counter\n")
	for _, k := range outKeys {
		fmt.Fprintf(&b, "extraction_calls_total{op=%q,outcome=%q} %d\n", k.op, k.outcome, outcomes[k])
	}
	b.WriteByte('\n')

	if m.pool != nil {
		acquired, idle, total := m.pool()
		for _, g := range []struct {
			name, help string
			val        int32
		}{
			{"db_pool_acquired_connections", "Connections in use.", acquired},
			{"db_pool_idle_connections", "Idle connections.", idle},
			{"db_pool_total_connections", "Open connections.", total},
		} {
			fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", g.name, g.help, g.name, g.name, g.val)
		}
	}

	return b.String()
}

func writeHistogram(b *strings.Builder, name, labels string, s histogramSnapshot) {
	for i, bound := range durationBuckets {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, bound, s.cumulative[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, s.count)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, s.sum)
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, s.count)
}

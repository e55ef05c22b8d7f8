package simbackend

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"paperwatch/pkg/models"
)

// Exporter exports Prometheus metrics for the simulated backend: session
// counts by state from the store, host cpu/memory gauges, and the HTTP
// counters collected by its middleware.
type Exporter struct {
	store     *Store
	registry  *promclient.Registry
	requests  *promclient.CounterVec
	startTime time.Time
}

// NewExporter creates a new Prometheus exporter for the simulated backend
func NewExporter(store *Store) *Exporter {
	e := &Exporter{
		store:     store,
		registry:  promclient.NewRegistry(),
		startTime: time.Now(),
		requests: promclient.NewCounterVec(
			promclient.CounterOpts{
				Name: "simbackend_http_requests_total",
				Help: "HTTP requests handled by the simulated backend",
			},
			[]string{"method", "endpoint", "status"},
		),
	}

	e.registry.MustRegister(e.requests)

	return e
}

// Middleware returns HTTP middleware that counts requests
func (e *Exporter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		e.requests.WithLabelValues(r.Method, r.URL.Path, fmt.Sprintf("%d", rw.statusCode)).Inc()
	})
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	// Session counts by status
	counts := e.store.CountByStatus()
	fmt.Fprintf(w, "# HELP simbackend_uptime_seconds Time since the simulated backend started\n")
	fmt.Fprintf(w, "# TYPE simbackend_uptime_seconds gauge\n")
	fmt.Fprintf(w, "simbackend_uptime_seconds %d\n", int64(time.Since(e.startTime).Seconds()))

	fmt.Fprintf(w, "\n# HELP simbackend_sessions Sessions by status\n")
	fmt.Fprintf(w, "# TYPE simbackend_sessions gauge\n")
	for _, status := range []models.SessionStatus{models.StatusUploading, models.StatusRunning, models.StatusCompleted, models.StatusError} {
		fmt.Fprintf(w, "simbackend_sessions{status=\"%s\"} %d\n", status, counts[status])
	}

	// Host gauges
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		fmt.Fprintf(w, "\n# HELP simbackend_host_cpu_usage Host CPU usage percentage (0-100)\n")
		fmt.Fprintf(w, "# TYPE simbackend_host_cpu_usage gauge\n")
		fmt.Fprintf(w, "simbackend_host_cpu_usage %.2f\n", cpuPercent[0])
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(w, "\n# HELP simbackend_host_memory_used_bytes Host memory usage in bytes\n")
		fmt.Fprintf(w, "# TYPE simbackend_host_memory_used_bytes gauge\n")
		fmt.Fprintf(w, "simbackend_host_memory_used_bytes %d\n", vmem.Used)
	}

	// Append registry-backed metrics (HTTP counters) in text format
	metricFamilies, err := e.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering registry metrics: %v\n", err)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}

	fmt.Fprintf(w, "\n")
	w.Write(buf.Bytes())
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

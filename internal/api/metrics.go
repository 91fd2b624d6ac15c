package api

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/poller"
	"github.com/nerrad567/rigdash/internal/rig"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Devices       device.Stats     `json:"devices"`
	Plot          poller.Status    `json:"plot"`
	Control       ControlMetrics   `json:"control"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedMessages  uint64 `json:"dropped_messages"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// ControlMetrics summarises the control monitor.
type ControlMetrics struct {
	Reachable bool   `json:"reachable"`
	State     string `json:"state,omitempty"`
	Held      bool   `json:"held"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, hub, poller and control statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	ctl := s.monitor.Snapshot()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedMessages:  s.hub.Dropped(),
		},
		Devices:   s.registry.GetStats(),
		Plot:      s.poller.Status(),
		Control: ControlMetrics{
			Reachable: ctl.Reachable,
			Held:      s.session.Held(),
		},
	}
	if ctl.Known {
		metrics.Control.State = string(ctl.View.State)
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// promMetrics is the server's Prometheus registry. It is private to the
// server so tests can build several without duplicate registration.
type promMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newPromMetrics(s *Server) *promMetrics {
	m := &promMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rigdash_http_requests_total",
				Help: "HTTP requests processed, by route, method and status code.",
			},
			[]string{"route", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rigdash_http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	gauge := func(name, help string, labels prometheus.Labels, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn)
	}
	devices := func(kind rig.Kind) func() float64 {
		return func() float64 { return float64(len(s.registry.ListByKind(kind))) }
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		gauge("rigdash_websocket_clients", "Connected WebSocket clients.", nil,
			func() float64 { return float64(s.hub.ClientCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rigdash_websocket_dropped_messages_total",
			Help: "Broadcasts skipped because a client's buffer was full.",
		}, func() float64 { return float64(s.hub.Dropped()) }),
		gauge("rigdash_devices", "Registered rig devices.", prometheus.Labels{"kind": string(rig.KindSensor)},
			devices(rig.KindSensor)),
		gauge("rigdash_devices", "Registered rig devices.", prometheus.Labels{"kind": string(rig.KindActuator)},
			devices(rig.KindActuator)),
		gauge("rigdash_plot_running", "1 while a plot session is running.", nil,
			func() float64 { return boolGauge(s.poller.Status().State == poller.StateRunning) }),
		gauge("rigdash_plot_rounds", "Polling rounds completed by the current plot session.", nil,
			func() float64 { return float64(s.poller.Status().Rounds) }),
		gauge("rigdash_plot_rig_time_seconds", "Rig running time seen by the last round.", nil,
			func() float64 { return s.poller.Status().CurrentTime }),
		gauge("rigdash_rig_reachable", "1 while the control status poll succeeds.", nil,
			func() float64 { return boolGauge(s.monitor.Snapshot().Reachable) }),
		gauge("rigdash_control_state", "Last experiment state code reported by the rig, -1 if unknown.", nil,
			func() float64 { return controlCode(s.monitor.Snapshot()) }),
	)
	return m
}

// observe records one finished request. The chi route pattern is used as the
// label so path parameters do not explode cardinality.
func (m *promMetrics) observe(r *http.Request, status int, elapsed time.Duration) {
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
	}
	m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func controlCode(snap control.Snapshot) float64 {
	if !snap.Known {
		return -1
	}
	return float64(snap.View.Code)
}

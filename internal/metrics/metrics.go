package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes for a single tick.
const (
	ScanAbsent    = "absent"
	ScanMalformed = "malformed"
	ScanStale     = "stale"
	ScanRepeat    = "repeat"
	ScanNew       = "new"
	ScanError     = "error"
)

// Metrics holds the kiosk's collectors on a private registry so tests can
// build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Ticks             prometheus.Counter
	TickDuration      prometheus.Histogram
	Scans             *prometheus.CounterVec
	Verdicts          *prometheus.CounterVec
	AttendanceWrites  *prometheus.CounterVec
	SourceReadErrors  prometheus.Counter
	ClassifyErrors    prometheus.Counter
	AttendancePruned  prometheus.Counter
	StreamSubscribers prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "janus_reconcile_ticks_total",
			Help: "Reconciliation ticks executed",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "janus_reconcile_tick_duration_seconds",
			Help:    "Wall time spent in one reconciliation tick",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_scans_total",
			Help: "Scan slot reads by outcome",
		}, []string{"outcome"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_verdicts_total",
			Help: "Entitlement verdicts by status and reason",
		}, []string{"status", "reason"}),
		AttendanceWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_attendance_writes_total",
			Help: "Attendance writes by result",
		}, []string{"result"}),
		SourceReadErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "janus_scan_source_errors_total",
			Help: "Scan slot reads that failed with an I/O error",
		}),
		ClassifyErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "janus_classify_errors_total",
			Help: "Membership lookups that failed with a store error",
		}),
		AttendancePruned: f.NewCounter(prometheus.CounterOpts{
			Name: "janus_attendance_pruned_total",
			Help: "Attendance rows deleted by the retention pruner",
		}),
		StreamSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "janus_identity_stream_subscribers",
			Help: "Open identity websocket streams",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wsnap"

// Registry holds all application metrics.
//
// All recording methods are safe on a nil *Registry, so components can
// run without metrics wired in.
type Registry struct {
	registry *prometheus.Registry

	// Snapshot lifecycle
	SavesTotal       *prometheus.CounterVec
	SaveDuration     prometheus.Histogram
	SnapshotFiles    prometheus.Gauge
	SnapshotBytes    prometheus.Gauge
	RestoresTotal    *prometheus.CounterVec
	RestoreFiles     *prometheus.CounterVec
	StoreOpsTotal    *prometheus.CounterVec
	MirrorOpsTotal   *prometheus.CounterVec
	LaunchesTotal    *prometheus.CounterVec
	HealPatchesTotal *prometheus.CounterVec

	// Scheduler
	DebounceScheduled prometheus.Counter
	DebounceCollapsed prometheus.Counter
	DebounceFired     prometheus.Counter
	DebounceDiscarded prometheus.Counter

	// Requests
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry, creating it on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// NewRegistry creates a registry with all wsnap metrics and the Go
// runtime and process collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		SavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Workspace snapshot saves by result",
		}, []string{"result"}),

		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time to walk the workspace and persist a snapshot",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		SnapshotFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_files",
			Help:      "Number of files in the most recent snapshot",
		}),

		SnapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Content size of the most recent snapshot",
		}),

		RestoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Snapshot restores by source and result",
		}, []string{"source", "result"}),

		RestoreFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_files_total",
			Help:      "Files processed during restore by outcome",
		}, []string{"outcome"}),

		StoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Snapshot store operations by op and result",
		}, []string{"op", "result"}),

		MirrorOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_ops_total",
			Help:      "Remote mirror operations by op and result",
		}, []string{"op", "result"}),

		LaunchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Auto-start command launches by result",
		}, []string{"result"}),

		HealPatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heal_patches_total",
			Help:      "Auto-heal patches applied by rule",
		}, []string{"rule"}),

		DebounceScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "scheduled_total",
			Help:      "Save triggers received by the scheduler",
		}),

		DebounceCollapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "collapsed_total",
			Help:      "Save triggers that replaced a pending timer",
		}),

		DebounceFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "fired_total",
			Help:      "Debounced saves that ran",
		}),

		DebounceDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "discarded_total",
			Help:      "Pending saves dropped at scheduler stop",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SavesTotal,
		r.SaveDuration,
		r.SnapshotFiles,
		r.SnapshotBytes,
		r.RestoresTotal,
		r.RestoreFiles,
		r.StoreOpsTotal,
		r.MirrorOpsTotal,
		r.LaunchesTotal,
		r.HealPatchesTotal,
		r.DebounceScheduled,
		r.DebounceCollapsed,
		r.DebounceFired,
		r.DebounceDiscarded,
		r.RequestsTotal,
		r.RequestDuration,
	)

	return r
}

// Prometheus returns the underlying registry for registering extra collectors.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler returns an HTTP handler serving this registry. A nil registry
// serves 404.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

// RecordSave records a save outcome, its latency and snapshot size.
func (r *Registry) RecordSave(result string, seconds float64, files int, bytes int64) {
	if r == nil {
		return
	}
	r.SavesTotal.WithLabelValues(result).Inc()
	r.SaveDuration.Observe(seconds)
	if result == "ok" {
		r.SnapshotFiles.Set(float64(files))
		r.SnapshotBytes.Set(float64(bytes))
	}
}

// RecordRestore records a restore outcome and per-file counts.
func (r *Registry) RecordRestore(source, result string, written, failed int) {
	if r == nil {
		return
	}
	r.RestoresTotal.WithLabelValues(source, result).Inc()
	r.RestoreFiles.WithLabelValues("written").Add(float64(written))
	r.RestoreFiles.WithLabelValues("failed").Add(float64(failed))
}

// RecordStoreOp records a snapshot store operation result.
func (r *Registry) RecordStoreOp(op, result string) {
	if r == nil {
		return
	}
	r.StoreOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordMirrorOp records a remote mirror operation result.
func (r *Registry) RecordMirrorOp(op, result string) {
	if r == nil {
		return
	}
	r.MirrorOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordLaunch records an auto-start attempt.
func (r *Registry) RecordLaunch(result string) {
	if r == nil {
		return
	}
	r.LaunchesTotal.WithLabelValues(result).Inc()
}

// RecordHealPatch records a successful auto-heal patch.
func (r *Registry) RecordHealPatch(rule string) {
	if r == nil {
		return
	}
	r.HealPatchesTotal.WithLabelValues(rule).Inc()
}

// IncDebounceScheduled counts a save trigger; collapsed marks a trigger
// that replaced a pending timer.
func (r *Registry) IncDebounceScheduled(collapsed bool) {
	if r == nil {
		return
	}
	r.DebounceScheduled.Inc()
	if collapsed {
		r.DebounceCollapsed.Inc()
	}
}

// IncDebounceFired counts a debounced save that ran.
func (r *Registry) IncDebounceFired() {
	if r == nil {
		return
	}
	r.DebounceFired.Inc()
}

// AddDebounceDiscarded counts pending saves dropped at stop.
func (r *Registry) AddDebounceDiscarded(n int) {
	if r == nil {
		return
	}
	r.DebounceDiscarded.Add(float64(n))
}

// RecordRequest records an HTTP request.
func (r *Registry) RecordRequest(method, route, status string) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// ObserveRequestDuration records HTTP request latency in seconds.
func (r *Registry) ObserveRequestDuration(method, route string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

package monitoring

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

// Metrics exports the activity of a profiling session as prometheus metrics.
// It is both a tracing.Tracer and a tracing.FrameTracer.
type Metrics struct {
	registry *prometheus.Registry

	trackedNodes   prometheus.Gauge
	nodesCreated   *prometheus.CounterVec
	nodesDestroyed *prometheus.CounterVec
	measurements   *prometheus.HistogramVec
	framesFlushed  *prometheus.CounterVec
	frameProfiles  prometheus.Histogram
}

// NewMetrics creates the metrics in a registry of their own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		trackedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "framescope_tracked_nodes",
			Help: "Number of nodes currently tracked",
		}),
		nodesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framescope_nodes_created_total",
			Help: "Nodes tracked for the first time",
		}, []string{"composite"}),
		nodesDestroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framescope_nodes_destroyed_total",
			Help: "Tracked nodes that left the tree",
		}, []string{"composite"}),
		measurements: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "framescope_measurement_duration_seconds",
			Help: "Duration of instrumented operations",
			Buckets: prometheus.ExponentialBuckets(
				0.00001, 4, 10), // 10us to ~2.6s
		}, []string{"kind"}),
		framesFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framescope_frames_flushed_total",
			Help: "Frames flushed, by source",
		}, []string{"source"}),
		frameProfiles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "framescope_frame_profiles",
			Help:    "Non-placeholder profiles per frame",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.trackedNodes,
		m.nodesCreated,
		m.nodesDestroyed,
		m.measurements,
		m.framesFlushed,
		m.frameProfiles,
	)

	return m
}

// Registry returns the registry the metrics are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NodeCreated counts a new node.
func (m *Metrics) NodeCreated(e observer.NodeEvent) {
	m.trackedNodes.Inc()
	m.nodesCreated.WithLabelValues(strconv.FormatBool(e.IsComposite)).Inc()
}

// NodeDestroyed counts a removed node.
func (m *Metrics) NodeDestroyed(e observer.NodeEvent) {
	m.trackedNodes.Dec()
	m.nodesDestroyed.WithLabelValues(strconv.FormatBool(e.IsComposite)).Inc()
}

// Measured observes the duration of a measurement.
func (m *Metrics) Measured(s observer.Measurement) {
	m.measurements.WithLabelValues(string(s.Kind)).Observe(s.DurationMs / 1000)
}

// FrameFlushed counts a frame.
func (m *Metrics) FrameFlushed(f frame.Frame) {
	m.framesFlushed.WithLabelValues(f.Source).Inc()
	m.frameProfiles.Observe(float64(f.NumProfiles()))
}

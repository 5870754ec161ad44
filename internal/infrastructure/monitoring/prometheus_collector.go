package monitoring

import (
	"strconv"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	connectionsCreated      *prometheus.CounterVec
	connectionCreateFailed  *prometheus.CounterVec
	connectionsReleased     prometheus.Counter
	stateTransitions        *prometheus.CounterVec
	flipsTotal              *prometheus.CounterVec
	eventsDropped           *prometheus.CounterVec
	statsSnapshotsCollected prometheus.Counter

	// Gauges
	connectionsActive prometheus.Gauge
	recording         prometheus.Gauge

	// Histograms
	flipDuration prometheus.Histogram

	// Per-connection metrics
	connectionBitrate *prometheus.GaugeVec
	connectionBytes   *prometheus.GaugeVec
	connectionLossing *prometheus.GaugeVec
}

// NewPrometheusCollector registers its metrics on reg; nil means the default registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "castmux_connections_created_total",
			Help: "Total number of outbound connections created",
		}, []string{"kind"}),

		connectionCreateFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "castmux_connection_create_failures_total",
			Help: "Total number of connection create attempts rejected by the media engine",
		}, []string{"kind"}),

		connectionsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "castmux_connections_released_total",
			Help: "Total number of connections released",
		}),

		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "castmux_connection_state_transitions_total",
			Help: "Connection state changes reported to observers",
		}, []string{"state"}),

		flipsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "castmux_camera_flips_total",
			Help: "Camera switches by outcome",
		}, []string{"result"}),

		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "castmux_events_dropped_total",
			Help: "Events dropped because an observer queue was full",
		}, []string{"type"}),

		statsSnapshotsCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "castmux_stats_snapshots_total",
			Help: "Statistics snapshots delivered to observers",
		}),

		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "castmux_connections_active",
			Help: "Number of tracked connections",
		}),

		recording: factory.NewGauge(prometheus.GaugeOpts{
			Name: "castmux_recording",
			Help: "1 while a local recording is in progress",
		}),

		flipDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "castmux_camera_flip_duration_seconds",
			Help:    "Duration of camera switches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		connectionBitrate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "castmux_connection_bitrate_bps",
			Help: "Current bitrate of each streaming connection in bits per second",
		}, []string{"connection_id"}),

		connectionBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "castmux_connection_bytes_delivered",
			Help: "Bytes delivered by each connection since it connected",
		}, []string{"connection_id"}),

		connectionLossing: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "castmux_connection_loss_increasing",
			Help: "1 when packet loss grew since the previous snapshot",
		}, []string{"connection_id"}),
	}
}

func (p *PrometheusCollector) RecordConnectionCreated(kind domain.ConnectionKind) {
	p.connectionsCreated.WithLabelValues(string(kind)).Inc()
	p.connectionsActive.Inc()
}

func (p *PrometheusCollector) RecordConnectionCreateFailed(kind domain.ConnectionKind) {
	p.connectionCreateFailed.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordConnectionReleased(handle domain.ConnectionHandle) {
	p.connectionsReleased.Inc()
	p.connectionsActive.Dec()

	id := strconv.Itoa(int(handle))
	p.connectionBitrate.DeleteLabelValues(id)
	p.connectionBytes.DeleteLabelValues(id)
	p.connectionLossing.DeleteLabelValues(id)
}

func (p *PrometheusCollector) RecordStateTransition(state domain.ConnectionState) {
	p.stateTransitions.WithLabelValues(state.EventName()).Inc()
}

func (p *PrometheusCollector) RecordStatsSnapshot(snapshot domain.StatsSnapshot) {
	p.statsSnapshotsCollected.Inc()
	if snapshot.Recording {
		p.recording.Set(1)
	} else {
		p.recording.Set(0)
	}

	for handle, stats := range snapshot.Connections {
		id := strconv.Itoa(int(handle))
		p.connectionBitrate.WithLabelValues(id).Set(stats.Bitrate)
		p.connectionBytes.WithLabelValues(id).Set(float64(stats.BytesDelivered))
		loss := 0.0
		if stats.LossIncreasing {
			loss = 1
		}
		p.connectionLossing.WithLabelValues(id).Set(loss)
	}
}

func (p *PrometheusCollector) RecordFlip(ok bool, seconds float64) {
	result := "success"
	if !ok {
		result = "failure"
	}
	p.flipsTotal.WithLabelValues(result).Inc()
	p.flipDuration.Observe(seconds)
}

// RecordEventDropped matches the publisher's drop hook.
func (p *PrometheusCollector) RecordEventDropped(observerID string, eventType domain.EventType) {
	p.eventsDropped.WithLabelValues(string(eventType)).Inc()
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

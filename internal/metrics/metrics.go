package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtpmididns/midirouter/internal/router"
)

// Metrics holds all Prometheus metrics for the daemon. Each instance owns its
// registry, so tests and multiple routers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	// Router metrics
	Peers          *prometheus.GaugeVec
	PacketsRouted  prometheus.Counter
	BytesRouted    prometheus.Counter
	PacketsDropped *prometheus.CounterVec

	// Transport metrics
	QueueOverflow prometheus.Counter

	// Stats writer metrics
	StatsFlushes       prometheus.Counter
	StatsFlushErrors   prometheus.Counter
	StatsFlushDuration prometheus.Histogram
}

var _ router.Observer = (*Metrics)(nil)

// New creates metrics with the given namespace on a fresh registry that also
// carries the Go runtime and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Peers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers",
			Help:      "Number of registered peers by kind",
		}, []string{"kind"}),
		PacketsRouted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_routed_total",
			Help:      "Total number of packets delivered to a peer",
		}),
		BytesRouted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_routed_total",
			Help:      "Total payload bytes delivered to peers",
		}),
		PacketsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Total number of packets dropped by the router, by reason",
		}, []string{"reason"}),

		QueueOverflow: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_queue_overflow_total",
			Help:      "Packets discarded because a websocket peer's send queue was full",
		}),

		StatsFlushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_flushes_total",
			Help:      "Total number of stats snapshots written to the database",
		}),
		StatsFlushErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_flush_errors_total",
			Help:      "Total number of failed stats snapshot writes",
		}),
		StatsFlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stats_flush_duration_seconds",
			Help:      "Stats snapshot write latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
}

// PeerAdded implements router.Observer.
func (m *Metrics) PeerAdded(kind string) {
	m.Peers.WithLabelValues(kind).Inc()
}

// PeerRemoved implements router.Observer.
func (m *Metrics) PeerRemoved(kind string) {
	m.Peers.WithLabelValues(kind).Dec()
}

// PacketRouted implements router.Observer.
func (m *Metrics) PacketRouted(size int) {
	m.PacketsRouted.Inc()
	m.BytesRouted.Add(float64(size))
}

// PacketDropped implements router.Observer.
func (m *Metrics) PacketDropped(reason error) {
	m.PacketsDropped.WithLabelValues(dropLabel(reason)).Inc()
}

// QueueDropped records a packet discarded by a full websocket send queue.
func (m *Metrics) QueueDropped() {
	m.QueueOverflow.Inc()
}

// RecordFlush records one stats writer flush.
func (m *Metrics) RecordFlush(err error, duration time.Duration) {
	if err != nil {
		m.StatsFlushErrors.Inc()
		return
	}
	m.StatsFlushes.Inc()
	m.StatsFlushDuration.Observe(duration.Seconds())
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func dropLabel(reason error) string {
	switch {
	case errors.Is(reason, router.ErrUnknownSourcePeer):
		return "unknown_source"
	case errors.Is(reason, router.ErrUnknownDestinationPeer):
		return "unknown_destination"
	default:
		return "other"
	}
}

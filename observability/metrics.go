package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duochat"

// Metrics groups every collector of the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	connections    prometheus.Gauge
	online         prometheus.Gauge
	requests       *prometheus.CounterVec
	messages       prometheus.Counter
	deliveries     *prometheus.CounterVec
	failedDelivery *prometheus.CounterVec
	restarts       *prometheus.CounterVec
	residentBytes  prometheus.Gauge
	cpuPercent     prometheus.Gauge
	goroutines     prometheus.Gauge
}

// NewMetrics registers the collectors on a dedicated registry,
// alongside the Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: registry,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open chat streams.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_identities",
			Help:      "Number of identities with at least one live connection.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by operation and result code.",
		}, []string{"op", "code"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages appended to a conversation.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Events pushed to live connections.",
		}, []string{"event"}),
		failedDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Events that could not be pushed, the connection was dropped.",
		}, []string{"event"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Supervised worker restarts after a crash.",
		}, []string{"worker"}),
		residentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resident_memory_bytes",
			Help:      "Resident set size sampled by the stats reporter.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_percent",
			Help:      "Process CPU usage sampled by the stats reporter.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Goroutines sampled by the stats reporter.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections, m.online, m.requests, m.messages, m.deliveries,
		m.failedDelivery, m.restarts, m.residentBytes, m.cpuPercent, m.goroutines,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.gatherer
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) SetOnline(n int) {
	if m != nil {
		m.online.Set(float64(n))
	}
}

func (m *Metrics) Request(op, code string) {
	if m != nil {
		m.requests.WithLabelValues(op, code).Inc()
	}
}

func (m *Metrics) MessageAppended() {
	if m != nil {
		m.messages.Inc()
	}
}

func (m *Metrics) Delivered(event string) {
	if m != nil {
		m.deliveries.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) DeliveryFailed(event string) {
	if m != nil {
		m.failedDelivery.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) WorkerRestarted(worker string) {
	if m != nil {
		m.restarts.WithLabelValues(worker).Inc()
	}
}

// ProcessSampled records one sample of the stats reporter.
func (m *Metrics) ProcessSampled(rss uint64, cpu float64, goroutines int) {
	if m != nil {
		m.residentBytes.Set(float64(rss))
		m.cpuPercent.Set(cpu)
		m.goroutines.Set(float64(goroutines))
	}
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the ledger service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Operations      *prometheus.CounterVec
	Records         prometheus.Gauge
	RPCRequests     *prometheus.CounterVec
	RPCDuration     *prometheus.HistogramVec
	EventsDropped   prometheus.Counter
	EventsDelivered *prometheus.CounterVec
	EventFailures   *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonetyo_ledger_operations_total",
			Help: "Ledger mutations by operation and result",
		}, []string{"operation", "result"}),
		Records: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sonetyo_ledger_records",
			Help: "Number of records minted",
		}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonetyo_rpc_requests_total",
			Help: "RPC requests by method and result code",
		}, []string{"method", "code"}),
		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sonetyo_rpc_request_duration_seconds",
			Help:    "RPC request latency by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sonetyo_events_dropped_total",
			Help: "Ledger events dropped because the outbox was full",
		}),
		EventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonetyo_events_delivered_total",
			Help: "Ledger events delivered per subscriber",
		}, []string{"subscriber"}),
		EventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonetyo_event_delivery_failures_total",
			Help: "Ledger event deliveries that failed per subscriber",
		}, []string{"subscriber"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation counts a ledger mutation.
func (m *Metrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

// SetRecords sets the minted record gauge.
func (m *Metrics) SetRecords(n uint64) {
	if m == nil {
		return
	}
	m.Records.Set(float64(n))
}

// IncRecords counts one newly minted record.
func (m *Metrics) IncRecords() {
	if m == nil {
		return
	}
	m.Records.Inc()
}

// ObserveRPC records one RPC request.
func (m *Metrics) ObserveRPC(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// IncEventsDropped increments the dropped events counter.
func (m *Metrics) IncEventsDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// ObserveDelivery counts a delivery attempt for subscriber.
func (m *Metrics) ObserveDelivery(subscriber string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EventFailures.WithLabelValues(subscriber).Inc()
		return
	}
	m.EventsDelivered.WithLabelValues(subscriber).Inc()
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	wsConnections     prometheus.Gauge
	rpcRequests       *prometheus.CounterVec
	rpcErrors         *prometheus.CounterVec
	broadcastsDropped prometheus.Counter
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "remix_simulator_ws_connections",
			Help: "The number of open WebSocket connections",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remix_simulator_rpc_requests_total",
			Help: "The total number of dispatched JSON-RPC requests",
		}, []string{"method", "transport"}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remix_simulator_rpc_errors_total",
			Help: "The total number of JSON-RPC requests answered with an error",
		}, []string{"reason"}),
		broadcastsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remix_simulator_broadcast_dropped_total",
			Help: "The total number of broadcast frames dropped for slow or closed connections",
		}),
	}
	metrics.register()
	return metrics
}

func (m *Metrics) register() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.wsConnections,
		m.rpcRequests,
		m.rpcErrors,
		m.broadcastsDropped,
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Inc()
}

func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Dec()
}

func (m *Metrics) IncrementRPCRequests(method, transport string) {
	m.rpcRequests.WithLabelValues(method, transport).Inc()
}

func (m *Metrics) IncrementRPCErrors(reason string) {
	m.rpcErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddBroadcastDropped(n int) {
	m.broadcastsDropped.Add(float64(n))
}

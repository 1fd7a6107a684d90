package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics; a nil
// *Metrics is accepted by callers and means "don't record".
type Metrics struct {
	// Solana RPC
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	// Tip jar operations
	submissionsTotal    *prometheus.CounterVec
	submissionDuration  *prometheus.HistogramVec
	confirmationPolls   *prometheus.HistogramVec
	lamportsTransferred *prometheus.CounterVec
	refreshesTotal      *prometheus.CounterVec
	tipjarTotalTips     *prometheus.GaugeVec
	tipjarTipCount      *prometheus.GaugeVec
	tipjarAvailable     *prometheus.GaugeVec

	// HTTP
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipjar_submissions_total",
				Help: "Total number of tip jar transactions submitted by instruction and outcome",
			},
			[]string{"instruction", "outcome"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tipjar_submission_duration_seconds",
				Help:    "Time from blockhash fetch to confirmation in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"instruction"},
		),
		confirmationPolls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tipjar_confirmation_polls",
				Help:    "Number of signature status polls until a submission settled",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"instruction"},
		),
		lamportsTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipjar_lamports_transferred_total",
				Help: "Lamports moved by confirmed tip jar transactions",
			},
			[]string{"instruction"},
		),
		refreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipjar_refreshes_total",
				Help: "Total number of view refreshes by trigger and status",
			},
			[]string{"trigger", "status"},
		),
		tipjarTotalTips: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tipjar_total_tips_lamports",
				Help: "Lifetime tips recorded by the tip jar account",
			},
			[]string{"tipjar_address"},
		),
		tipjarTipCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tipjar_tip_count",
				Help: "Number of tips recorded by the tip jar account",
			},
			[]string{"tipjar_address"},
		),
		tipjarAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tipjar_available_lamports",
				Help: "Withdrawable balance above the rent-exempt floor",
			},
			[]string{"tipjar_address"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"tipjar_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"tipjar_address", "event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordSubmission records the outcome of a submitted instruction.
// outcome is "confirmed", "rejected" or "error".
func (m *Metrics) RecordSubmission(instruction, outcome string, duration float64, polls int) {
	m.submissionsTotal.WithLabelValues(instruction, outcome).Inc()
	m.submissionDuration.WithLabelValues(instruction).Observe(duration)
	if polls > 0 {
		m.confirmationPolls.WithLabelValues(instruction).Observe(float64(polls))
	}
}

// RecordLamportsTransferred adds the amount of a confirmed tip or withdrawal.
func (m *Metrics) RecordLamportsTransferred(instruction string, lamports uint64) {
	m.lamportsTransferred.WithLabelValues(instruction).Add(float64(lamports))
}

// RecordRefresh records a view refresh.
func (m *Metrics) RecordRefresh(trigger, status string) {
	m.refreshesTotal.WithLabelValues(trigger, status).Inc()
}

// RecordTipJarState exports the last observed account state.
func (m *Metrics) RecordTipJarState(address string, totalTips, tipCount, available uint64) {
	m.tipjarTotalTips.WithLabelValues(address).Set(float64(totalTips))
	m.tipjarTipCount.WithLabelValues(address).Set(float64(tipCount))
	m.tipjarAvailable.WithLabelValues(address).Set(float64(available))
}

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(address string, delta float64) {
	m.sseActiveConnections.WithLabelValues(address).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(address, eventType string) {
	m.sseEventsSent.WithLabelValues(address, eventType).Inc()
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}

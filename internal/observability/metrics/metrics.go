package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgentMetrics exposes counters/histograms for the booking assistant.
type AgentMetrics struct {
	operationsTotal    *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	modelFailures      prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	inboundTotal       *prometheus.CounterVec
}

func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	m := &AgentMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "agent",
			Name:      "operations_total",
			Help:      "Appointment operations executed, by operation and outcome",
		}, []string{"operation", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "agent",
			Name:      "request_seconds",
			Help:      "End-to-end latency of one utterance, by selected operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		modelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "agent",
			Name:      "model_failures_total",
			Help:      "Language model calls that failed the request",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Customer notifications sent from the dashboard",
		}, []string{"template", "status"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "channel",
			Name:      "inbound_total",
			Help:      "Inbound utterances by channel and status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.requestLatency, m.modelFailures, m.notificationsTotal, m.inboundTotal)
	return m
}

func (m *AgentMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *AgentMetrics) ObserveRequest(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *AgentMetrics) ObserveModelFailure() {
	if m == nil {
		return
	}
	m.modelFailures.Inc()
}

func (m *AgentMetrics) ObserveNotification(template string, sent bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.notificationsTotal.WithLabelValues(template, status).Inc()
}

func (m *AgentMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

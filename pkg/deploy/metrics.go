package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the attempts counter.
const (
	OutcomeSuccess   = "success"
	OutcomeDeploying = "deploying"
	OutcomeFailure   = "failure"
	OutcomeTransport = "transport_error"
)

// Metrics wraps the prometheus collectors of the retry driver.
type Metrics struct {
	attemptsTotal *prometheus.CounterVec
	waitSeconds   *prometheus.HistogramVec
	callsTotal    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "call_attempts_total",
				Help:      "Remote call attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		waitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploying_wait_seconds",
				Help:      "Backoff delays spent waiting on deploying resources",
				Buckets:   []float64{0.1, 0.32, 0.64, 1.28, 2.56, 5.12, 10.24},
			},
			[]string{"operation"},
		),
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Completed remote calls by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attemptsTotal, m.waitSeconds, m.callsTotal)
	}
	return m
}

// AttemptsTotal exposes the attempts counter.
func (m *Metrics) AttemptsTotal() *prometheus.CounterVec { return m.attemptsTotal }

// CallsTotal exposes the calls counter.
func (m *Metrics) CallsTotal() *prometheus.CounterVec { return m.callsTotal }

func (m *Metrics) attempt(op, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) wait(op string, seconds float64) {
	if m == nil {
		return
	}
	m.waitSeconds.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) call(op, outcome string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(op, outcome).Inc()
}

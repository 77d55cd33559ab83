package rewards

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for payout instrumentation.
type Metrics struct {
	attempts *prometheus.CounterVec
	payouts  *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewMetrics registers the reward collectors with reg (or the default
// registerer when nil). Re-registration reuses the existing collectors, so
// constructing several engines against one registry is safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		attempts: registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapstreak",
			Subsystem: "rewards",
			Name:      "payout_attempts_total",
			Help:      "Payment attempts against individual destinations.",
		}, []string{"result"})),
		payouts: registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapstreak",
			Subsystem: "rewards",
			Name:      "payouts_total",
			Help:      "Accrue-and-pay pipeline outcomes.",
		}, []string{"result"})),
		latency: registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zapstreak",
			Subsystem: "rewards",
			Name:      "payout_duration_seconds",
			Help:      "Wall time of successful payout sequences.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		})),
	}
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(prometheus.Histogram)
		}
		panic(err)
	}
	return h
}

func (m *Metrics) recordAttempt(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) recordPayout(result string) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(d.Seconds())
}

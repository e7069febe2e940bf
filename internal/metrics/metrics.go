// Package metrics exposes the engine's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loyalty"

type Metrics struct {
	transactions   *prometheus.CounterVec
	points         *prometheus.CounterVec
	awards         *prometheus.CounterVec
	redemptions    *prometheus.CounterVec
	codeCollisions *prometheus.CounterVec
	sweepProcessed *prometheus.CounterVec
	requests       *prometheus.CounterVec
	durations      *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Ledger transactions appended by kind.",
		}, []string{"kind"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Absolute points moved by the ledger, by kind and direction.",
		}, []string{"kind", "direction"}),
		awards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_awards_total",
			Help:      "Order completion events by outcome.",
		}, []string{"outcome"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Redemption lifecycle transitions by resulting status.",
		}, []string{"status"}),
		codeCollisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_collisions_total",
			Help:      "Generated unique codes that collided and were retried.",
		}, []string{"code"}),
		sweepProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_processed_total",
			Help:      "Entries processed by periodic sweeps.",
		}, []string{"job", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route pattern and status.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		m.transactions,
		m.points,
		m.awards,
		m.redemptions,
		m.codeCollisions,
		m.sweepProcessed,
		m.requests,
		m.durations,
	)
	return m
}

func (m *Metrics) TransactionAppended(kind string, delta int64) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind).Inc()
	switch {
	case delta > 0:
		m.points.WithLabelValues(kind, "credit").Add(float64(delta))
	case delta < 0:
		m.points.WithLabelValues(kind, "debit").Add(float64(-delta))
	}
}

// OrderAward records the outcome of an order completion: awarded, replayed or rejected.
func (m *Metrics) OrderAward(outcome string) {
	if m == nil {
		return
	}
	m.awards.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RedemptionStatus(status string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(status).Inc()
}

func (m *Metrics) CodeCollision(code string) {
	if m == nil {
		return
	}
	m.codeCollisions.WithLabelValues(code).Inc()
}

func (m *Metrics) SweepProcessed(job, result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sweepProcessed.WithLabelValues(job, result).Add(float64(n))
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

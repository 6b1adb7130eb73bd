// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Wallets         *prometheus.CounterVec
	Payments        *prometheus.CounterVec
	AuthOutcomes    *prometheus.CounterVec
	OTPVerifies     *prometheus.CounterVec
	LedgerSubmits   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		Wallets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_wallet_requests_total",
				Help: "Get-or-create wallet outcomes.",
			},
			[]string{"result"},
		),
		Payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_payments_total",
				Help: "Payment submissions by asset and outcome.",
			},
			[]string{"asset", "result"},
		),
		AuthOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_resolutions_total",
				Help: "Authentication resolver terminal states.",
			},
			[]string{"outcome"},
		),
		OTPVerifies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otp_verifications_total",
				Help: "OTP verification attempts.",
			},
			[]string{"scope", "result"},
		),
		LedgerSubmits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_submit_duration_seconds",
				Help:    "Transaction submission latency in seconds.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"kind", "result"},
		),
	}
	registry.MustRegister(
		m.RequestCount, m.RequestDuration, m.Wallets, m.Payments,
		m.AuthOutcomes, m.OTPVerifies, m.LedgerSubmits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency keyed by route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		path := c.Route().Path
		m.RequestCount.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// WalletResult counts one get-or-create outcome.
func (m *Metrics) WalletResult(result string) {
	if m == nil {
		return
	}
	m.Wallets.WithLabelValues(result).Inc()
}

// PaymentResult counts one payment outcome.
func (m *Metrics) PaymentResult(asset, result string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(asset, result).Inc()
}

// AuthOutcome counts one resolver terminal state.
func (m *Metrics) AuthOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomes.WithLabelValues(outcome).Inc()
}

// OTPResult counts one verification attempt.
func (m *Metrics) OTPResult(scope, result string) {
	if m == nil {
		return
	}
	m.OTPVerifies.WithLabelValues(scope, result).Inc()
}

// ObserveSubmit records the latency of one ledger submission.
func (m *Metrics) ObserveSubmit(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LedgerSubmits.WithLabelValues(kind, result).Observe(time.Since(start).Seconds())
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vending_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	// SettlementsTotal counts settlements by result code ("ok" on success).
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_settlements_total",
		Help: "Settlements processed, labeled by result",
	}, []string{"result"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vending_settlement_duration_seconds",
		Help:    "Time spent inside the settlement unit of work",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})

	CoinsPaidOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_change_coins_paid_out_total",
		Help: "Coins handed out as change, labeled by denomination",
	}, []string{"denomination"})

	CoinsDeposited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_coins_deposited_total",
		Help: "Coins captured from customers, labeled by denomination",
	}, []string{"denomination"})

	SessionAdmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_session_admissions_total",
		Help: "Realtime connection attempts, labeled by outcome",
	}, []string{"outcome"})

	// SessionActive is 1 while a client holds the machine.
	SessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vending_session_active",
		Help: "Whether a realtime client currently holds the machine",
	})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vending_event_publish_failures_total",
		Help: "Order events that could not be published",
	})

	// BreakerState mirrors the publisher circuit breaker (0=closed, 1=open, 2=half-open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vending_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})
)

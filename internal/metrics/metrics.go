// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profiles_db_query_duration_seconds",
			Help:    "Duration of database statements in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // select, select_one, insert, update, delete
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiles_db_query_errors_total",
			Help: "Total number of failed database statements",
		},
		[]string{"operation"},
	)

	DBReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiles_db_reconnects_total",
			Help: "Pool recreations by outcome",
		},
		[]string{"result"}, // success, failure
	)

	DBPoolState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profiles_db_pool_state",
			Help: "Connection manager state (0 = idle, 1 = reconnecting)",
		},
	)

	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profiles_db_open_connections",
			Help: "Open connections in the current pool",
		},
	)

	// HTTP

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profiles_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Mail

	MailSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiles_mail_sent_total",
			Help: "Emails handed to the SMTP server by kind and result",
		},
		[]string{"kind", "result"},
	)

	MailCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profiles_mail_circuit_state",
			Help: "SMTP circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		},
	)
)

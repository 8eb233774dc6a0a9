package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_reconciled_total",
		Help: "Total number of reconciliations by gateway and outcome (created, existing, conflict)",
	}, []string{"gateway", "outcome"})

	ReconcileFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_failures_total",
		Help: "Total number of reconciliations that could not persist an order",
	}, []string{"reason"})

	FrontDoorResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdoor_results_total",
		Help: "Total number of front door invocations by terminal state and reason",
	}, []string{"state", "reason"})

	RetryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Total number of retried operation attempts by classification",
	}, []string{"operation", "class"})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway confirmation, including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Total number of notification jobs by recipient role and status",
	}, []string{"role", "status"})

	WebhookMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_messages_total",
		Help: "Total number of webhook confirmations consumed by outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests received.",
		},
		[]string{"method", "path", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "code"},
	)

	// subject: anonymous|registered, outcome: permitted|denied|not_found
	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Scan permission decisions taken by the quota ledger.",
		},
		[]string{"subject", "outcome"},
	)

	ScansRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_scans_recorded_total",
			Help: "Scans recorded against the quota ledger.",
		},
		[]string{"subject", "metered"},
	)

	// outcome: applied|stale|unmatched|duplicate|ignored|logged|invalid|failed
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Billing provider webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

// Package observ holds the Prometheus instruments shared by the HTTP layer
// and the background workers.
package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chow_http_requests_total",
		Help: "HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chow_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chow_outbox_published_total",
		Help: "Outbox rows published to the broker.",
	})

	OutboxPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chow_outbox_publish_errors_total",
		Help: "Failed outbox publish attempts; rows stay claimable.",
	})

	InboxRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chow_inbox_recorded_total",
		Help: "Inbound messages by recording outcome.",
	}, []string{"outcome"}) // inserted, duplicate, dropped, error

	InboxProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chow_inbox_processed_total",
		Help: "Inbox rows by dispatch outcome.",
	}, []string{"outcome"}) // processed, failed, retry
)

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatherly_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Connection metrics
	SessionsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatherly_ws_sessions_connected",
			Help: "Live WebSocket sessions",
		},
	)

	SessionsBound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatherly_ws_sessions_bound",
			Help: "Sessions currently bound to a room",
		},
	)

	// Broadcast metrics
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_events_delivered_total",
			Help: "Events enqueued to session outbound queues",
		},
		[]string{"op"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_events_dropped_total",
			Help: "Events dropped because a session queue was full",
		},
		[]string{"op"},
	)

	// Business metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_messages_appended_total",
			Help: "Messages persisted to the store",
		},
		[]string{"kind"}, // "text" or "image"
	)

	TypingExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatherly_typing_expired_total",
			Help: "Typing indicators cleared by the decay timer",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_rate_limit_hits_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)
)

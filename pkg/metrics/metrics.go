package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanovena_authorization_decisions_total",
		Help: "AccessGuard decisions by outcome.",
	}, []string{"outcome"})

	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanovena_quota_rejections_total",
		Help: "Resource creation attempts rejected by plan limits.",
	}, []string{"plan", "resource"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lanovena_gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanovena_webhook_requests_total",
		Help: "Inbound gateway webhooks by kind and HTTP status.",
	}, []string{"kind", "status"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lanovena_webhook_duration_seconds",
		Help:    "Time spent answering inbound gateway webhooks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	GatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanovena_gateway_events_total",
		Help: "Gateway confirmations applied to tenant state, by kind and result.",
	}, []string{"kind", "result"})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanovena_sweep_runs_total",
		Help: "Scheduled sweep executions by sweep and outcome.",
	}, []string{"sweep", "outcome"})

	SweepItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanovena_sweep_items_total",
		Help: "Rows examined, changed or failed by sweeps.",
	}, []string{"sweep", "result"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lanovena_sweep_duration_seconds",
		Help:    "Wall time of a sweep tick.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
	}, []string{"sweep"})
)

package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_http_requests_total", Help: "HTTP requests"},
		[]string{"route", "status"},
	)
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_login_requests_total", Help: "Magic link login requests"},
		[]string{"channel", "result"},
	)
	TokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_magic_link_validations_total", Help: "Magic link validation outcomes"},
		[]string{"result"},
	)
	TokensSwept = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cipc_magic_links_swept_total", Help: "Terminal magic links removed by the sweeper"},
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_channel_send_total", Help: "Channel send outcomes"},
		[]string{"channel", "result"},
	)
	DeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cipc_channel_send_latency_seconds", Help: "Channel send latency"},
		[]string{"channel"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_payment_webhook_events_total", Help: "Payment webhook outcomes"},
		[]string{"outcome"},
	)
	WorkflowDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_workflow_dispatch_total", Help: "Filing workflow trigger outcomes"},
		[]string{"result", "http_status"},
	)
	OutboxEnqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_outbox_enqueue_total", Help: "Outbox enqueue results"},
		[]string{"kind", "result"},
	)
	OutboxJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cipc_outbox_jobs_total", Help: "Outbox jobs processed by the worker"},
		[]string{"kind", "result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequests, Logins, TokenValidations, TokensSwept,
		Deliveries, DeliveryLatency, WebhookEvents, WorkflowDispatches,
		OutboxEnqueues, OutboxJobs,
	)
}

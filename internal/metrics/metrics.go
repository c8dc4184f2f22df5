package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgchat_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orgchat_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgchat_reconcile_total",
		Help: "Reconciliation passes by result",
	}, []string{"result"})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orgchat_reconcile_duration_seconds",
		Help:    "Duration of reconciliation passes",
		Buckets: prometheus.DefBuckets,
	})

	chatsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgchat_chats_created_total",
		Help: "Chats created by type",
	}, []string{"type"})

	chatsDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orgchat_chats_destroyed_total",
		Help: "Chats destroyed",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orgchat_messages_sent_total",
		Help: "Messages appended",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveReconcile records one reconciliation pass with a result label (ok, error).
func ObserveReconcile(result string, duration time.Duration) {
	reconcileTotal.WithLabelValues(result).Inc()
	reconcileDuration.Observe(duration.Seconds())
}

// ObserveChatCreated counts a new chat of the given type.
func ObserveChatCreated(chatType string) {
	chatsCreated.WithLabelValues(chatType).Inc()
}

// ObserveChatDestroyed counts a destroyed chat.
func ObserveChatDestroyed() {
	chatsDestroyed.Inc()
}

// ObserveMessageSent counts an appended message.
func ObserveMessageSent() {
	messagesSent.Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatzi_socket_connections_active",
		Help: "Number of live socket connections.",
	})

	UsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatzi_users_online",
		Help: "Number of users with at least one live connection.",
	})

	ConnectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzi_socket_connections_rejected_total",
		Help: "Socket handshakes refused by the identity gate.",
	}, []string{"reason"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatzi_messages_sent_total",
		Help: "Messages persisted and broadcast.",
	})

	SecondaryWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzi_secondary_write_failures_total",
		Help: "Best-effort writes that failed and were only logged.",
	}, []string{"op"})

	CallTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzi_call_transitions_total",
		Help: "Call state machine transitions.",
	}, []string{"transition"})

	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzi_socket_events_total",
		Help: "Client events handled, by event and outcome.",
	}, []string{"event", "outcome"})

	RequestsThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzi_http_requests_throttled_total",
		Help: "HTTP requests refused by a rate limit, by scope.",
	}, []string{"scope"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	SessionsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "sessions_issued_total", Help: "Refresh sessions created."},
	)
	SessionsRotated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "sessions_rotated_total", Help: "Successful refresh rotations."},
	)
	SessionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "sessions_rejected_total", Help: "Refresh attempts rejected, by reason."},
		[]string{"reason"},
	)
	SessionsRevoked = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "sessions_revoked_total", Help: "Sessions revoked by revoke-all."},
	)

	AuthRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "http_auth_rejected_total", Help: "Requests rejected by the auth gate."},
		[]string{"reason"},
	)

	RealtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "socialhub", Name: "realtime_connections", Help: "Currently joined realtime connections."},
	)
	RealtimeHandshakeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "realtime_handshake_failures_total", Help: "Rejected realtime handshakes."},
	)
	RealtimeEventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "realtime_events_emitted_total", Help: "Frames queued to connections, by event."},
		[]string{"event"},
	)
	RealtimeEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "socialhub", Name: "realtime_events_dropped_total", Help: "Frames dropped because a connection queue was full."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SessionsIssued)
	reg.MustRegister(SessionsRotated)
	reg.MustRegister(SessionsRejected)
	reg.MustRegister(SessionsRevoked)
	reg.MustRegister(AuthRejected)
	reg.MustRegister(RealtimeConnections)
	reg.MustRegister(RealtimeHandshakeFailures)
	reg.MustRegister(RealtimeEventsEmitted)
	reg.MustRegister(RealtimeEventsDropped)
}

package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	sessionEvents       *prometheus.CounterVec
	leadershipChanges   *prometheus.CounterVec
	autoLogouts         prometheus.Counter
	profileRefreshTotal *prometheus.CounterVec
	inactivityArmed     prometheus.Gauge

	broadcastPosted   *prometheus.CounterVec
	broadcastReceived *prometheus.CounterVec
	broadcastDropped  *prometheus.CounterVec

	relayMembers  *prometheus.GaugeVec
	relayRejected *prometheus.CounterVec

	apiRequestTotal    *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	storageErrors *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sessionEvents: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_events_total",
					Help: "Session lifecycle events by kind (login, logout, claim).",
				},
				[]string{"event"},
			),
			leadershipChanges: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_leadership_changes_total",
					Help: "Tab leadership transitions by resulting state.",
				},
				[]string{"state"},
			),
			autoLogouts: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_auto_logouts_total",
					Help: "Logouts fired by the inactivity timer.",
				},
			),
			profileRefreshTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_profile_refresh_total",
					Help: "Profile refreshes on startup by outcome.",
				},
				[]string{"outcome"},
			),
			inactivityArmed: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "session_inactivity_timers_armed",
					Help: "Inactivity timers currently armed in this process.",
				},
			),
			broadcastPosted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "broadcast_messages_posted_total",
					Help: "Broadcast messages posted by type.",
				},
				[]string{"type"},
			),
			broadcastReceived: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "broadcast_messages_received_total",
					Help: "Broadcast messages delivered to a member by type.",
				},
				[]string{"type"},
			),
			broadcastDropped: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "broadcast_messages_dropped_total",
					Help: "Broadcast messages dropped by reason.",
				},
				[]string{"reason"},
			),
			relayMembers: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "relay_channel_members",
					Help: "Authenticated relay members by channel.",
				},
				[]string{"channel"},
			),
			relayRejected: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_rejected_total",
					Help: "Relay frames or connections rejected by reason.",
				},
				[]string{"reason"},
			),
			apiRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "api_requests_total",
					Help: "Backend API requests by method, route and status.",
				},
				[]string{"method", "route", "status"},
			),
			apiRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "api_request_duration_seconds",
					Help:    "Backend API request duration in seconds by route.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route"},
			),
			storageErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storage_errors_total",
					Help: "Durable storage failures by operation.",
				},
				[]string{"op"},
			),
		}

		prometheus.MustRegister(
			m.sessionEvents,
			m.leadershipChanges,
			m.autoLogouts,
			m.profileRefreshTotal,
			m.inactivityArmed,
			m.broadcastPosted,
			m.broadcastReceived,
			m.broadcastDropped,
			m.relayMembers,
			m.relayRejected,
			m.apiRequestTotal,
			m.apiRequestDuration,
			m.storageErrors,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSessionEvent(event string) {
	getMetrics().sessionEvents.WithLabelValues(event).Inc()
}

func RecordLeadershipChange(active bool) {
	state := "inactive"
	if active {
		state = "active"
	}
	getMetrics().leadershipChanges.WithLabelValues(state).Inc()
}

func RecordAutoLogout() {
	getMetrics().autoLogouts.Inc()
}

func RecordProfileRefresh(success bool) {
	outcome := "fallback"
	if success {
		outcome = "success"
	}
	getMetrics().profileRefreshTotal.WithLabelValues(outcome).Inc()
}

// SetInactivityArmed adjusts the armed timer gauge by one in either direction
func SetInactivityArmed(armed bool) {
	m := getMetrics()
	if armed {
		m.inactivityArmed.Inc()
	} else {
		m.inactivityArmed.Dec()
	}
}

func RecordBroadcastPosted(msgType string) {
	getMetrics().broadcastPosted.WithLabelValues(msgType).Inc()
}

func RecordBroadcastReceived(msgType string) {
	getMetrics().broadcastReceived.WithLabelValues(msgType).Inc()
}

func RecordBroadcastDropped(reason string) {
	getMetrics().broadcastDropped.WithLabelValues(reason).Inc()
}

func SetRelayMembers(channel string, count int) {
	getMetrics().relayMembers.WithLabelValues(channel).Set(float64(count))
}

func RecordRelayRejected(reason string) {
	getMetrics().relayRejected.WithLabelValues(reason).Inc()
}

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	m := getMetrics()
	m.apiRequestTotal.WithLabelValues(method, route, status).Inc()
	m.apiRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func RecordStorageError(op string) {
	getMetrics().storageErrors.WithLabelValues(op).Inc()
}

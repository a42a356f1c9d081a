package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Kernel / timing wheel metrics
	TimersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "horology_timers_active",
			Help: "Non-terminal timers currently held by the wheel, by tenant",
		},
		[]string{"tenant_id"},
	)

	TimersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horology_timers_total",
			Help: "Total timers by terminal status",
		},
		[]string{"status"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horology_kernel_tick_duration_seconds",
			Help:    "Time taken to process a single wheel tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	FireJitter = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horology_fire_jitter_seconds",
			Help:    "Observed (fired_at - fire_at) per timer",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
	)

	ClockDriftSignal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horology_clock_drift_active",
			Help: "1 if the kernel has raised a ClockDrift health signal, 0 otherwise",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horology_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horology_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horology_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horology_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horology_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Gateway metrics
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horology_gateway_requests_total",
			Help: "Total gateway requests by operation and result code",
		},
		[]string{"operation", "code"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horology_gateway_request_duration_seconds",
			Help:    "Gateway request duration by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horology_quota_rejections_total",
			Help: "Requests rejected by quota enforcement, by kind",
		},
		[]string{"tenant_id", "kind"},
	)

	// Orchestrator metrics
	ActionDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horology_action_dispatch_total",
			Help: "Action dispatch attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ActionDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horology_action_dispatch_duration_seconds",
			Help:    "Action dispatch duration by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ActionsDeadLettered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horology_actions_dead_lettered_total",
			Help: "Actions that exhausted retries or failed terminally",
		},
	)

	// Event fan-out metrics
	SubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horology_subscribers_active",
			Help: "Currently connected event subscribers",
		},
	)

	SubscriberDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horology_subscriber_drops_total",
			Help: "Subscribers disconnected due to a full backpressure queue",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TimersActive, TimersTotal, TickDuration, FireJitter, ClockDriftSignal,
		RaftLeader, RaftPeers, RaftLogIndex, RaftAppliedIndex, RaftApplyDuration,
		GatewayRequestsTotal, GatewayRequestDuration, QuotaRejectionsTotal,
		ActionDispatchTotal, ActionDispatchDuration, ActionsDeadLettered,
		SubscribersActive, SubscriberDropsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	fallbackAttemptsTotal *prometheus.CounterVec
	candidateCooldown     *prometheus.GaugeVec

	turnTotal     *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	toolRounds    prometheus.Histogram
	roundLimitHit prometheus.Counter

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	argumentRepairsTotal *prometheus.CounterVec
	historyDropsTotal    *prometheus.CounterVec

	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			fallbackAttemptsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fallback_attempts_total",
					Help: "Total failed failover attempts by provider and reason.",
				},
				[]string{"provider", "reason"},
			),
			candidateCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "candidate_cooldown_active",
					Help: "Candidate cooldown state (1 active, 0 inactive).",
				},
				[]string{"candidate"},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turn_total",
					Help: "Total orchestrated turns by provider and status.",
				},
				[]string{"provider", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "turn_duration_seconds",
					Help:    "Turn duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolRounds: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tool_rounds_per_turn",
					Help:    "Tool-execution rounds needed per turn.",
					Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
				},
			),
			roundLimitHit: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tool_round_limit_exceeded_total",
					Help: "Turns aborted for exceeding the tool round limit.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			argumentRepairsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_argument_repairs_total",
					Help: "Tool-argument parse outcomes by repair step.",
				},
				[]string{"step"},
			),
			historyDropsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "history_drops_total",
					Help: "Messages dropped by the history validator by kind.",
				},
				[]string{"kind"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.fallbackAttemptsTotal,
			m.candidateCooldown,
			m.turnTotal,
			m.turnDuration,
			m.toolRounds,
			m.roundLimitHit,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.argumentRepairsTotal,
			m.historyDropsTotal,
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
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

func RecordFallbackAttempt(provider, reason string) {
	getMetrics().fallbackAttemptsTotal.WithLabelValues(provider, reason).Inc()
}

func SetCandidateCooldown(candidate string, active bool) {
	value := 0.0
	if active {
		value = 1.0
	}
	getMetrics().candidateCooldown.WithLabelValues(candidate).Set(value)
}

func RecordTurn(provider string, duration time.Duration, rounds int, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.turnTotal.WithLabelValues(provider, status).Inc()
	m.turnDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.toolRounds.Observe(float64(rounds))
}

func RecordRoundLimitExceeded() {
	getMetrics().roundLimitHit.Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordArgumentRepair(step string) {
	getMetrics().argumentRepairsTotal.WithLabelValues(step).Inc()
}

func RecordHistoryDrop(kind string) {
	getMetrics().historyDropsTotal.WithLabelValues(kind).Inc()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

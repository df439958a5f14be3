package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cronturn"

var (
	isolatedRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "isolated",
		Name:      "runs_total",
		Help:      "Isolated agent turn runs by terminal status.",
	}, []string{"status"})

	isolatedRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "isolated",
		Name:      "run_duration_seconds",
		Help:      "Wall time of isolated agent turn runs.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})

	threadsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "threads_created_total",
		Help:      "Threads materialized for cron runs.",
	}, []string{"channel", "result"})

	deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbound",
		Name:      "messages_total",
		Help:      "Outbound message sends by channel and result.",
	}, []string{"channel", "result"})

	modelAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "model_attempts_total",
		Help:      "Model generation attempts by provider and result.",
	}, []string{"provider", "result"})
)

func init() {
	registry.MustRegister(isolatedRuns, isolatedRunDuration, threadsCreated, deliveries, modelAttempts)
}

func ObserveIsolatedRun(status string, elapsed time.Duration) {
	isolatedRuns.WithLabelValues(status).Inc()
	isolatedRunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func IncThreadCreated(channel string, ok bool) {
	threadsCreated.WithLabelValues(channel, result(ok)).Inc()
}

func IncDelivery(channel string, ok bool) {
	deliveries.WithLabelValues(channel, result(ok)).Inc()
}

func IncModelAttempt(provider string, ok bool) {
	modelAttempts.WithLabelValues(provider, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Package metrics exports session lifecycle counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/rs/zerolog/log"

	"github.com/PoluyanbIch/quizclock/internal/session"
)

var (
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizclock",
		Name:      "sessions_started_total",
		Help:      "Quiz sessions started, by quiz.",
	}, []string{"quiz"})

	sessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizclock",
		Name:      "sessions_finished_total",
		Help:      "Quiz sessions finished, by quiz and reason.",
	}, []string{"quiz", "reason"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizclock",
		Name:      "sessions_active",
		Help:      "Quiz sessions currently running.",
	})

	scorePercent = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizclock",
		Name:      "score_percent",
		Help:      "Share of the maximum score earned per finished session.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	}, []string{"quiz"})
)

func SessionStarted(quizID string) {
	sessionsStarted.WithLabelValues(quizID).Inc()
	sessionsActive.Inc()
}

func SessionFinished(quizID string, res session.Result) {
	sessionsFinished.WithLabelValues(quizID, res.Reason.String()).Inc()
	sessionsActive.Dec()
	scorePercent.WithLabelValues(quizID).Observe(float64(res.Percentage()))
}

// Serve exposes /metrics on addr in the background. An empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics.")
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics listener stopped.")
		}
	}()
}

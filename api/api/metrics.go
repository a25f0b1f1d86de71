/* metrics.go
 * Contains the prometheus collectors for the scoring engine and the sync orchestrator. A nil *Metrics is
 * valid and records nothing
 */

package api

import (
	"time"
	"tugofwar/api/shared"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	syncs           *prometheus.CounterVec
	rateLimited     prometheus.Counter
	fetchFailures   prometheus.Counter
	scored          *prometheus.CounterVec
	completions     *prometheus.CounterVec
	syncLatency     prometheus.Histogram
	limiterFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tugofwar",
			Name:      "syncs_total",
			Help:      "Sync requests by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tugofwar",
			Name:      "sync_rate_limited_total",
			Help:      "Sync requests rejected by the rate limiter.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tugofwar",
			Name:      "judge_fetch_failures_total",
			Help:      "Per handle judge fetches that failed or timed out.",
		}),
		scored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tugofwar",
			Name:      "scored_submissions_total",
			Help:      "Ledger entries appended, by side and points.",
		}, []string{"side", "points"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tugofwar",
			Name:      "match_completions_total",
			Help:      "Matches completed, by reason.",
		}, []string{"reason"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tugofwar",
			Name:      "sync_duration_seconds",
			Help:      "End to end sync latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}),
		limiterFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tugofwar",
			Name:      "rate_limiter_errors_total",
			Help:      "Rate limiter storage errors. Requests fail closed.",
		}),
	}
	reg.MustRegister(m.syncs, m.rateLimited, m.fetchFailures, m.scored, m.completions, m.syncLatency, m.limiterFailures)
	return m
}

func (m *Metrics) observeSync(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(outcome).Inc()
	m.syncLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) incRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) incLimiterFailure() {
	if m == nil {
		return
	}
	m.limiterFailures.Inc()
}

func (m *Metrics) incFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) incScored(side shared.Side, points int) {
	if m == nil {
		return
	}
	var label string
	switch {
	case points > 0:
		label = "accepted"
	case points < 0:
		label = "penalty"
	default:
		label = "repeat"
	}
	m.scored.WithLabelValues(string(side), label).Inc()
}

func (m *Metrics) incCompletion(isTimeout bool) {
	if m == nil {
		return
	}
	reason := "threshold"
	if isTimeout {
		reason = "timeout"
	}
	m.completions.WithLabelValues(reason).Inc()
}

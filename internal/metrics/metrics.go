// Package metrics exposes Prometheus instrumentation for recommendation
// runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Candidates seen at each pipeline stage of the latest runs.
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelrank_candidates_total",
			Help: "Candidates entering each pipeline stage",
		},
		[]string{"stage"}, // "input", "deduped", "scored", "shortlisted", "shown"
	)

	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelrank_candidates_dropped_total",
			Help: "Candidates removed from a run, by reason",
		},
		[]string{"reason"}, // "duplicate", "excluded", "seen", "seen_fuzzy", "hidden"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelrank_run_duration_seconds",
			Help:    "Duration of a full recommendation run",
			Buckets: prometheus.DefBuckets,
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelrank_runs_total",
			Help: "Recommendation runs by outcome",
		},
		[]string{"status"}, // "success", "error"
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelrank_last_run_timestamp_seconds",
			Help: "Unix time of the last successful run",
		},
	)

	FeedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelrank_feedback_events_total",
			Help: "Feedback events ingested, by kind",
		},
		[]string{"kind"}, // "downvote", "genre", "hide"
	)

	SeenIndexRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelrank_seen_index_records",
			Help: "Records held by the seen index",
		},
	)
)

// RecordStage adds n candidates to a stage counter.
func RecordStage(stage string, n int) {
	CandidatesTotal.WithLabelValues(stage).Add(float64(n))
}

// RecordDropped adds n candidates to a drop-reason counter.
func RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	CandidatesDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordRun observes a finished run.
func RecordRun(duration time.Duration, err error) {
	RunDuration.Observe(duration.Seconds())
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return
	}
	RunsTotal.WithLabelValues("success").Inc()
	LastRunTimestamp.SetToCurrentTime()
}

// RecordFeedback adds n ingested events of a kind.
func RecordFeedback(kind string, n int) {
	if n <= 0 {
		return
	}
	FeedbackEventsTotal.WithLabelValues(kind).Add(float64(n))
}

// SetSeenIndexSize reports the current seen index size.
func SetSeenIndexSize(n int) {
	SeenIndexRecords.Set(float64(n))
}

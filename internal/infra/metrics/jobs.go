package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsProcessedTotal,
		jobsInflight,
		feedbackRoundsTotal,
	)
}

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_jobs_processed_total",
			Help: "Total number of crew jobs that reached a post-invocation state, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'pending_approval', 'failed'
	)

	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crew_jobs_inflight",
			Help: "Number of crew invocations currently executing.",
		},
	)

	feedbackRoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_feedback_rounds_total",
			Help: "Human feedback submissions, labeled by outcome.",
		},
		[]string{"outcome"}, // 'approved', 'rejected', 'limit_reached'
	)
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func JobStarted()  { jobsInflight.Inc() }
func JobFinished() { jobsInflight.Dec() }

func IncFeedback(outcome string) {
	feedbackRoundsTotal.WithLabelValues(norm(outcome)).Inc()
}

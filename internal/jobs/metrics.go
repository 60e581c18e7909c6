package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	sweepCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shareactivities",
		Subsystem: "jobs",
		Name:      "sweeps_total",
		Help:      "Completed sweeps grouped by job and result.",
	}, []string{"job", "result"})

	sweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shareactivities",
		Subsystem: "jobs",
		Name:      "sweep_duration_seconds",
		Help:      "Wall time spent in one sweep.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	activityCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shareactivities",
		Subsystem: "jobs",
		Name:      "activities_total",
		Help:      "Activities handled by sweeps grouped by job and outcome.",
	}, []string{"job", "outcome"})
)

func init() {
	prometheus.MustRegister(sweepCounter, sweepDuration, activityCounter)
}

func recordSweep(report SweepReport, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	sweepCounter.WithLabelValues(report.Job, result).Inc()
	sweepDuration.WithLabelValues(report.Job).Observe(report.Duration.Seconds())
}

func recordActivity(job, outcome string) {
	activityCounter.WithLabelValues(job, outcome).Inc()
}

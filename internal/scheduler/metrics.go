package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shareactivities",
		Subsystem: "scheduler",
		Name:      "runs_total",
		Help:      "Task runs grouped by task and result.",
	}, []string{"task", "result"})

	lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shareactivities",
		Subsystem: "scheduler",
		Name:      "last_run_duration_seconds",
		Help:      "Duration of the most recent run of each task.",
	}, []string{"task"})
)

func init() {
	prometheus.MustRegister(runCounter, lastRun)
}

func recordRun(task string, err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	runCounter.WithLabelValues(task, result).Inc()
	lastRun.WithLabelValues(task).Set(took.Seconds())
}

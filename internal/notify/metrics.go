package notify

import "github.com/prometheus/client_golang/prometheus"

var outcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shareactivities",
	Subsystem: "notify",
	Name:      "push_attempts_total",
	Help:      "Push notification attempts grouped by outcome status and reason.",
}, []string{"status", "reason"})

func init() {
	prometheus.MustRegister(outcomeCounter)
}

func recordOutcome(o Outcome) {
	outcomeCounter.WithLabelValues(string(o.Status), o.Reason).Inc()
}

// Package observability exposes watermark gauges shared by the API, jobs and consumer processes.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shareactivities",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write committed to Postgres.",
	})
	activityNotifiedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shareactivities",
		Subsystem: "notify",
		Name:      "last_event_notified_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity event fanned out to its audience.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, activityNotifiedGauge)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordActivityNotified updates the notification watermark gauge.
func RecordActivityNotified(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityNotifiedGauge.Set(float64(ts.Unix()))
}

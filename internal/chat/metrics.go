package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shareactivities",
		Subsystem: "chat",
		Name:      "connections",
		Help:      "Connections currently registered in a room.",
	})

	broadcastCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shareactivities",
		Subsystem: "chat",
		Name:      "broadcast_frames_total",
		Help:      "Broadcast frames grouped by per-connection result.",
	}, []string{"result"})

	messageCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shareactivities",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Inbound chat messages grouped by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(connectionsGauge, broadcastCounter, messageCounter)
}

func recordBroadcast(r BroadcastResult) {
	broadcastCounter.WithLabelValues("delivered").Add(float64(r.Delivered))
	broadcastCounter.WithLabelValues("skipped").Add(float64(r.Skipped))
	broadcastCounter.WithLabelValues("failed").Add(float64(r.Failed))
}

func recordMessage(result string) {
	messageCounter.WithLabelValues(result).Inc()
}

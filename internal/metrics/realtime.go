package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(realtimeEventsTotal, realtimeStaleEventsTotal, realtimeReconnectsTotal) }

var (
	realtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Job change events received over the realtime channel, by event type.",
		},
		[]string{"type"},
	)

	realtimeStaleEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_stale_events_total",
			Help: "Events discarded because they would regress a job's status.",
		},
	)

	realtimeReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Realtime subscriptions re-established after a drop.",
		},
	)
)

func IncRealtimeEvent(eventType string) {
	realtimeEventsTotal.WithLabelValues(norm(eventType)).Inc()
}

func IncStaleEvent() { realtimeStaleEventsTotal.Inc() }

func IncReconnect() { realtimeReconnectsTotal.Inc() }

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_realtime_connections",
		Help: "Websocket connections currently attached to the room registry",
	})

	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_realtime_rooms",
		Help: "Posts with at least one live subscriber",
	})

	deliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_broadcast_delivered_total",
		Help: "Comment events handed to subscriber send buffers",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_broadcast_dropped_total",
		Help: "Comment events dropped for closed or slow subscribers",
	})

	relayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_relay_errors_total",
		Help: "Redis relay failures by stage",
	}, []string{"stage"})
)

package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curvesync_hub_sessions_created_total",
		Help: "Total number of sessions created",
	})
	changesRelayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curvesync_hub_changes_relayed_total",
		Help: "Total number of change messages relayed to peers",
	})
	presenceRelayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curvesync_hub_presence_relayed_total",
		Help: "Total number of presence messages relayed to peers",
	})
	messagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curvesync_hub_messages_dropped_total",
		Help: "Messages dropped because a client send buffer was full or a payload failed to parse",
	})
	openSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curvesync_hub_open_sessions",
		Help: "Number of sessions currently held in memory",
	})
	connectedClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curvesync_hub_connected_clients",
		Help: "Number of websocket clients currently connected",
	})
)

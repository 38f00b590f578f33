// Package observability provides logging and metrics for the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the real-time fanout path.
var (
	// WebSocketConnectionsTotal tracks currently open websocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrace_websocket_connections",
		Help: "Number of currently open WebSocket connections",
	})

	// WebSocketRoomMembers tracks live membership per room scope (match/battle).
	WebSocketRoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terrace_websocket_room_members",
		Help: "Number of connections joined per room scope",
	}, []string{"scope"})

	// RoomEventsTotal counts events broadcast to rooms by event type.
	RoomEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrace_room_events_total",
		Help: "Total events broadcast to rooms",
	}, []string{"event"})

	// WebSocketBackpressureDrops counts messages dropped because a client's
	// send buffer was full or its channel already closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrace_websocket_backpressure_drops_total",
		Help: "Messages dropped due to client backpressure",
	}, []string{"reason"})

	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrace_redis_errors_total",
		Help: "Total Redis command errors",
	}, []string{"command"})

	// BattlesEndedTotal counts battle completions by outcome source.
	BattlesEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrace_battles_ended_total",
		Help: "Total battles ended",
	}, []string{"source"})
)

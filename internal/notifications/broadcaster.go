package notifications

import (
	"context"
	"encoding/json"
	"log"

	"terrace/internal/observability"
)

// RoomBroadcaster is the single egress for mutation-triggered events. When
// Redis is configured events travel through pub/sub (and come back via the
// subscriber for local delivery); otherwise they go straight to the local
// hub. Either path is non-blocking for the publisher, and both preserve the
// order in which events for one room were published.
type RoomBroadcaster struct {
	hub      *Hub
	notifier *Notifier
}

// NewRoomBroadcaster wires a broadcaster over the given hub and notifier.
func NewRoomBroadcaster(hub *Hub, notifier *Notifier) *RoomBroadcaster {
	return &RoomBroadcaster{hub: hub, notifier: notifier}
}

// Publish sends an event to every member of room.
func (b *RoomBroadcaster) Publish(room string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcaster: failed to marshal %s event: %v", event.Type, err)
		return
	}
	observability.RoomEventsTotal.WithLabelValues(event.Type).Inc()

	if b.notifier.Ready() {
		if err := b.notifier.PublishRoom(context.Background(), room, string(message)); err == nil {
			return
		} else {
			log.Printf("broadcaster: redis publish failed for %s, delivering locally: %v", event.Type, err)
		}
	}
	b.hub.BroadcastToRoom(room, message, 0)
}

// StartWiring connects the Redis subscriber to the local hub so events
// published by any process reach this process's connections.
func (b *RoomBroadcaster) StartWiring(ctx context.Context) error {
	return b.notifier.StartRoomSubscriber(ctx, func(room, payload string) {
		b.hub.BroadcastToRoom(room, []byte(payload), 0)
	})
}

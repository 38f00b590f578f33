package notifications

import (
	"context"
	"log"
	"runtime/debug"
	"strings"

	"github.com/redis/go-redis/v9"
)

const roomChannelPrefix = "room:"

// Notifier publishes room events into Redis channels so a future multi-node
// deployment can fan out across processes. With a nil Redis client every
// publish is a no-op and callers fall back to in-process broadcast.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Ready reports whether a Redis connection is available.
func (n *Notifier) Ready() bool {
	return n != nil && n.rdb != nil
}

// PublishRoom sends an event payload to a room's channel. Redis preserves
// per-channel publish order, so per-room event ordering survives the hop.
func (n *Notifier) PublishRoom(ctx context.Context, room, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, roomChannelPrefix+room, payload).Err()
}

// StartRoomSubscriber subscribes to the room channel pattern and calls
// onMessage with the room name and payload for each incoming message.
func (n *Notifier) StartRoomSubscriber(
	ctx context.Context, onMessage func(room string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, roomChannelPrefix+"*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in room subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(strings.TrimPrefix(msg.Channel, roomChannelPrefix), msg.Payload)
				}()
			}
		}
	}()

	return nil
}

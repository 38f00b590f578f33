package notifications

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"terrace/internal/observability"
)

// Hub manages websocket connections and room membership for the real-time
// channel. It is constructed once and handed to its consumers explicitly;
// nothing reaches for it through package state.
//
// Rooms are named by scope and id ("match_1234", "battle_42"). A connection
// can sit in any number of rooms; join, leave and disconnect feed the
// presence tracker and notify room peers.
type Hub struct {
	mu sync.RWMutex

	// Map: userID -> their single websocket client (one connection per client)
	clients map[uint]*Client

	// Map: room name -> userID -> client
	rooms map[string]map[uint]*Client

	// Map: userID -> set of rooms they have joined
	userRooms map[uint]map[string]struct{}

	presence *PresenceTracker
}

// NewHub creates a new Hub feeding the given presence tracker.
func NewHub(presence *PresenceTracker) *Hub {
	return &Hub{
		clients:   make(map[uint]*Client),
		rooms:     make(map[string]map[uint]*Client),
		userRooms: make(map[uint]map[string]struct{}),
		presence:  presence,
	}
}

// Register records a user's connection. A user holds one live connection; a
// newer one displaces the old, which is cleaned up like a disconnect.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	old := h.clients[client.UserID]
	h.clients[client.UserID] = client
	h.mu.Unlock()

	if old != nil && old != client {
		h.cleanupClient(old)
		close(old.Send)
	}

	observability.WebSocketConnectionsTotal.Inc()
	log.Printf("Hub: user %d connected", client.UserID)
}

// UnregisterClient removes a connection and evicts its user from every room
// they occupied, notifying peers in each.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.UserID]
	if !ok || current != client {
		// A newer connection already displaced this one.
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.UserID)
	h.mu.Unlock()

	h.cleanupClient(client)
	observability.WebSocketConnectionsTotal.Dec()
	log.Printf("Hub: user %d disconnected", client.UserID)
}

// cleanupClient removes the client from all rooms, emitting user:left to each.
func (h *Hub) cleanupClient(client *Client) {
	h.mu.Lock()
	var left []string
	if rooms, ok := h.userRooms[client.UserID]; ok {
		for room := range rooms {
			h.removeFromRoomLocked(room, client.UserID)
			left = append(left, room)
		}
		delete(h.userRooms, client.UserID)
	}
	h.mu.Unlock()

	for _, room := range left {
		h.presence.Leave(room, client.UserID)
		h.notifyPeers(room, EventUserLeft, client.UserID)
	}
}

// JoinRoom subscribes a user's connection to a room and notifies peers.
func (h *Hub) JoinRoom(userID uint, room string) {
	h.mu.Lock()
	client, ok := h.clients[userID]
	if !ok {
		h.mu.Unlock()
		log.Printf("Hub: user %d not connected, cannot join %s", userID, room)
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[uint]*Client)
	}
	h.rooms[room][userID] = client
	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[string]struct{})
	}
	h.userRooms[userID][room] = struct{}{}
	h.mu.Unlock()

	h.presence.Join(room, userID)
	observability.WebSocketRoomMembers.WithLabelValues(roomScope(room)).Inc()
	h.notifyPeers(room, EventUserJoined, userID)
	log.Printf("Hub: user %d joined %s", userID, room)
}

// LeaveRoom unsubscribes a user's connection from a room and notifies peers.
func (h *Hub) LeaveRoom(userID uint, room string) {
	h.mu.Lock()
	h.removeFromRoomLocked(room, userID)
	if rooms, ok := h.userRooms[userID]; ok {
		delete(rooms, room)
	}
	h.mu.Unlock()

	h.presence.Leave(room, userID)
	h.notifyPeers(room, EventUserLeft, userID)
	log.Printf("Hub: user %d left %s", userID, room)
}

func (h *Hub) removeFromRoomLocked(room string, userID uint) {
	if members, ok := h.rooms[room]; ok {
		if _, present := members[userID]; present {
			delete(members, userID)
			observability.WebSocketRoomMembers.WithLabelValues(roomScope(room)).Dec()
		}
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// BroadcastToRoom delivers a pre-marshaled message to every member of room.
// excludeUserID (0 = none) suppresses delivery to the acting connection.
// Delivery never blocks; slow clients drop messages instead.
func (h *Hub) BroadcastToRoom(room string, message []byte, excludeUserID uint) {
	h.mu.RLock()
	members, ok := h.rooms[room]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(members))
	for userID, client := range members {
		if excludeUserID != 0 && userID == excludeUserID {
			continue
		}
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.TrySend(message)
	}
}

// notifyPeers emits a user:joined / user:left event to the room, excluding
// the acting user.
func (h *Hub) notifyPeers(room, eventType string, userID uint) {
	message, err := json.Marshal(Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"user_id": userID,
			"room":    room,
		},
	})
	if err != nil {
		log.Printf("Hub: failed to marshal %s event: %v", eventType, err)
		return
	}
	observability.RoomEventsTotal.WithLabelValues(eventType).Inc()
	h.BroadcastToRoom(room, message, userID)
}

// roomScope extracts the scope prefix of a room name ("match", "battle").
func roomScope(room string) string {
	if i := strings.IndexByte(room, '_'); i > 0 {
		return room[:i]
	}
	return room
}

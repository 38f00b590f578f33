package server

import (
	"encoding/json"
	"log"

	"terrace/internal/models"
	"terrace/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler handles the real-time connection: one connection per
// client, authenticated at handshake, driving room membership through
// join/leave events.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		// Set by the handshake auth middleware; a connection without it was
		// never supposed to get this far.
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		client := notifications.NewClient(s.hub, conn, userID)
		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var incoming struct {
				Type    string                 `json:"type"`
				Payload map[string]interface{} `json:"payload"`
			}
			if err := json.Unmarshal(message, &incoming); err != nil {
				log.Printf("WebSocket: invalid message from user %d", userID)
				return
			}

			switch incoming.Type {
			case notifications.ActionJoinMatch:
				if matchID, ok := incoming.Payload["match_id"].(string); ok && matchID != "" {
					room := notifications.MatchRoom(matchID)
					s.hub.JoinRoom(userID, room)
					s.sendAck(c, "joined", room)
				}

			case notifications.ActionLeaveMatch:
				if matchID, ok := incoming.Payload["match_id"].(string); ok && matchID != "" {
					s.hub.LeaveRoom(userID, notifications.MatchRoom(matchID))
				}

			case notifications.ActionJoinBattle:
				if battleID, ok := incoming.Payload["battle_id"].(float64); ok && battleID > 0 {
					room := notifications.BattleRoom(uint(battleID))
					s.hub.JoinRoom(userID, room)
					s.sendAck(c, "joined", room)
				}

			case notifications.ActionLeaveBattle:
				if battleID, ok := incoming.Payload["battle_id"].(float64); ok && battleID > 0 {
					s.hub.LeaveRoom(userID, notifications.BattleRoom(uint(battleID)))
				}

			default:
				log.Printf("WebSocket: unknown event %q from user %d", incoming.Type, userID)
			}
		}

		s.hub.Register(client)

		go client.WritePump()
		client.ReadPump()
	})
}

// sendAck confirms a room action back to the acting connection only.
func (s *Server) sendAck(c *notifications.Client, ack, room string) {
	event := notifications.Event{
		Type:    ack,
		Payload: map[string]string{"room": room},
	}
	if message, err := json.Marshal(event); err == nil {
		c.TrySend(message)
	}
}

// GetMatchPresence returns the identities currently connected to a match
// room (protected)
func (s *Server) GetMatchPresence(c *fiber.Ctx) error {
	matchID := c.Params("matchId")
	if matchID == "" {
		return respondError(c, models.NewInvalidRequestError("Invalid matchId"))
	}

	room := notifications.MatchRoom(matchID)
	members := s.presence.Members(room)
	return c.JSON(fiber.Map{
		"match_id": matchID,
		"members":  members,
		"count":    len(members),
	})
}

// Package notifications provides the real-time fanout layer: the websocket
// hub, room membership and presence, and Redis-backed event publishing.
package notifications

import "fmt"

// Server-initiated event names carried over the real-time channel.
const (
	EventBattleCreated      = "battle:created"
	EventBattleStarted      = "battle:started"
	EventBattleNewArgument  = "battle:newArgument"
	EventBattleNewVote      = "battle:newVote"
	EventBattleNewGift      = "battle:newGift"
	EventBattleViewerUpdate = "battle:viewerUpdate"
	EventBattleEnded        = "battle:ended"
	EventCommentCreated     = "comment:created"
	EventCommentLikeUpdate  = "comment:likeUpdate"
	EventUserJoined         = "user:joined"
	EventUserLeft           = "user:left"
)

// Client-initiated event names.
const (
	ActionJoinMatch   = "join:match"
	ActionLeaveMatch  = "leave:match"
	ActionJoinBattle  = "join:battle"
	ActionLeaveBattle = "leave:battle"
)

// Event is the wire envelope broadcast to room members.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// MatchRoom names the room observing a match.
func MatchRoom(matchID string) string {
	return "match_" + matchID
}

// BattleRoom names the room observing a battle.
func BattleRoom(battleID uint) string {
	return fmt.Sprintf("battle_%d", battleID)
}

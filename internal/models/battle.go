package models

import (
	"time"

	"gorm.io/gorm"
)

// BattleStatus defines the lifecycle state of a banter battle.
type BattleStatus string

const (
	// BattlePending is a challenge waiting for the opponent to accept.
	BattlePending BattleStatus = "pending"
	// BattleActive is a running battle accepting arguments, votes and gifts.
	BattleActive BattleStatus = "active"
	// BattleCompleted is a finished battle with a winner and reward.
	BattleCompleted BattleStatus = "completed"
	// BattleCancelled is a challenge that was withdrawn or expired unaccepted.
	BattleCancelled BattleStatus = "cancelled"
)

// CanTransition reports whether the lifecycle permits moving to next.
// The only legal paths are pending->active->completed and pending->cancelled;
// completed and cancelled are terminal.
func (s BattleStatus) CanTransition(next BattleStatus) bool {
	switch s {
	case BattlePending:
		return next == BattleActive || next == BattleCancelled
	case BattleActive:
		return next == BattleCompleted
	default:
		return false
	}
}

// Badges is a set of badge tags awarded with a battle reward.
type Badges []string

// Reward is the outcome granted when a battle completes. It is written
// exactly once, at the active->completed transition.
type Reward struct {
	Points int    `json:"points"`
	Badges Badges `gorm:"serializer:json" json:"badges"`
}

// Battle represents a timed two-party banter contest tied to a match.
type Battle struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	MatchID      string       `gorm:"not null;index" json:"match_id"`
	ChallengerID uint         `gorm:"not null" json:"challenger_id"`
	Challenger   User         `gorm:"foreignKey:ChallengerID" json:"challenger"`
	OpponentID   uint         `gorm:"not null" json:"opponent_id"`
	Opponent     User         `gorm:"foreignKey:OpponentID" json:"opponent"`
	Status       BattleStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Topic        string       `gorm:"type:text" json:"topic"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`

	Arguments []BattleArgument `gorm:"foreignKey:BattleID" json:"arguments"`
	Votes     []BattleVote     `gorm:"foreignKey:BattleID" json:"votes"`
	Gifts     []BattleGift     `gorm:"foreignKey:BattleID" json:"gifts"`

	// ViewerCount is the historical reach of the battle; it only grows.
	// Live presence is tracked separately from open connections.
	ViewerCount int            `json:"viewer_count"`
	WinnerID    *uint          `json:"winner_id,omitempty"`
	Winner      *User          `gorm:"foreignKey:WinnerID" json:"winner,omitempty"`
	Reward      Reward         `gorm:"embedded;embeddedPrefix:reward_" json:"reward"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsParticipant reports whether userID is the challenger or the opponent.
func (b *Battle) IsParticipant(userID uint) bool {
	return userID == b.ChallengerID || userID == b.OpponentID
}

// VoteTally holds recomputed per-participant vote counts. Tallies are derived
// from the vote rows at read time and never persisted.
type VoteTally struct {
	ChallengerVotes int `json:"challenger_votes"`
	OpponentVotes   int `json:"opponent_votes"`
}

// TallyVotes recomputes the vote tally from the loaded vote rows.
func (b *Battle) TallyVotes() VoteTally {
	var t VoteTally
	for _, v := range b.Votes {
		switch v.VotedForID {
		case b.ChallengerID:
			t.ChallengerVotes++
		case b.OpponentID:
			t.OpponentVotes++
		}
	}
	return t
}

// BattleArgument is a single banter entry posted by a participant.
type BattleArgument struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BattleID  uint      `gorm:"not null;index" json:"battle_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	MediaPath string    `json:"media_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BattleVote records a spectator's current choice. A voter holds at most one
// row per battle; re-voting overwrites the choice and its timestamp.
type BattleVote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BattleID   uint      `gorm:"not null;uniqueIndex:idx_battle_voter" json:"battle_id"`
	VoterID    uint      `gorm:"not null;uniqueIndex:idx_battle_voter" json:"voter_id"`
	Voter      User      `gorm:"foreignKey:VoterID" json:"voter"`
	VotedForID uint      `gorm:"not null" json:"voted_for_id"`
	VotedAt    time.Time `json:"voted_at"`
}

// BattleGift is an additive tip sent to a participant mid-battle.
type BattleGift struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BattleID  uint      `gorm:"not null;index" json:"battle_id"`
	FromID    uint      `gorm:"not null" json:"from_id"`
	From      User      `gorm:"foreignKey:FromID" json:"from"`
	ToID      uint      `gorm:"not null" json:"to_id"`
	To        User      `gorm:"foreignKey:ToID" json:"to"`
	GiftType  string    `gorm:"not null" json:"gift_type"`
	Amount    int       `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// BattleViewer marks an identity that has opened a battle at least once.
// The unique index makes viewer registration idempotent.
type BattleViewer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BattleID  uint      `gorm:"not null;uniqueIndex:idx_battle_viewer" json:"battle_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_battle_viewer" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

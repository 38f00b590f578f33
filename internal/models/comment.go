package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// MaxCommentDepth is the nesting ceiling for reply threads. Roots have depth
// 0, so a chain root -> reply -> reply -> reply is the deepest legal thread.
const MaxCommentDepth = 3

// CommentKind distinguishes plain text comments from media (meme) comments.
type CommentKind string

const (
	// CommentText is a plain text comment.
	CommentText CommentKind = "text"
	// CommentMedia is a comment carrying an uploaded or stock meme.
	CommentMedia CommentKind = "media"
)

// Comment is a match-thread comment. Parent and child hold each other only
// by id: ParentCommentID is a back-reference and Replies are loaded on
// demand, a parent never owns its replies.
type Comment struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	MatchID         string      `gorm:"not null;index:idx_comments_match_created" json:"match_id"`
	UserID          uint        `gorm:"not null;index" json:"user_id"`
	User            User        `gorm:"foreignKey:UserID" json:"user"`
	Content         string      `gorm:"type:text;not null" json:"content"`
	Kind            CommentKind `gorm:"type:varchar(10);not null;default:'text'" json:"kind"`
	MediaPath       string      `json:"media_path,omitempty"`
	ParentCommentID *uint       `gorm:"index" json:"parent_comment_id"`
	Replies         []Comment   `gorm:"foreignKey:ParentCommentID" json:"replies,omitempty"`
	ReplyCount      int         `json:"reply_count"`
	LikeCount       int         `json:"like_count"`
	Depth           int         `gorm:"not null;default:0" json:"depth"`

	// TimeAgo is derived at read time from CreatedAt and never persisted.
	TimeAgo string `gorm:"-" json:"time_ago,omitempty"`

	CreatedAt time.Time      `gorm:"index:idx_comments_match_created" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ComputeTimeAgo renders the comment's age relative to now ("42s ago",
// "3m ago", "2h ago", "1d ago").
func (c *Comment) ComputeTimeAgo(now time.Time) string {
	secs := int(math.Round(now.Sub(c.CreatedAt).Seconds()))
	if secs < 0 {
		secs = 0
	}
	mins := int(math.Round(float64(secs) / 60))
	hours := int(math.Round(float64(mins) / 60))
	days := int(math.Round(float64(hours) / 24))

	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dd ago", days)
	}
}

// CommentLike records one identity's like on a comment. The unique index
// enforces at most one row per user per comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_liker" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_liker" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

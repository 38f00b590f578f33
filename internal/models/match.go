package models

import (
	"time"

	"gorm.io/gorm"
)

// Match mirrors an externally-sourced fixture. Ingestion and live sync are
// handled by the football data service; Terrace only reads these rows to
// anchor battles and comment threads to a real match.
type Match struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	MatchID     string         `gorm:"uniqueIndex;not null" json:"match_id"`
	HomeTeam    string         `gorm:"not null" json:"home_team"`
	AwayTeam    string         `gorm:"not null" json:"away_team"`
	HomeScore   int            `json:"home_score"`
	AwayScore   int            `json:"away_score"`
	Status      string         `gorm:"type:varchar(20)" json:"status"`
	KickoffAt   time.Time      `json:"kickoff_at"`
	Competition string         `json:"competition"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

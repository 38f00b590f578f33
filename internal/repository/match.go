package repository

import (
	"context"

	"terrace/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository defines interface for match lookups. Fixture ingestion is
// owned by the external football data service.
type MatchRepository interface {
	GetByMatchID(ctx context.Context, matchID string) (*models.Match, error)
	Exists(ctx context.Context, matchID string) (bool, error)
	Upsert(ctx context.Context, match *models.Match) error
}

type matchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new MatchRepository
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) GetByMatchID(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&match).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) Exists(ctx context.Context, matchID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Match{}).Where("match_id = ?", matchID).Count(&count).Error
	return count > 0, err
}

func (r *matchRepository) Upsert(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"home_team", "away_team", "home_score", "away_score", "status", "kickoff_at", "competition",
		}),
	}).Create(match).Error
}

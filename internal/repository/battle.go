package repository

import (
	"context"
	"time"

	"terrace/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BattleRepository defines interface for battle aggregate operations.
// Callers are responsible for per-battle serialization; methods here only
// guarantee that each call is individually atomic.
type BattleRepository interface {
	Create(ctx context.Context, battle *models.Battle) error
	GetByID(ctx context.Context, id uint) (*models.Battle, error)
	ListByMatch(ctx context.Context, matchID string, statuses []models.BattleStatus) ([]*models.Battle, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Battle, error)
	Update(ctx context.Context, battle *models.Battle) error
	AddArgument(ctx context.Context, arg *models.BattleArgument) error
	UpsertVote(ctx context.Context, vote *models.BattleVote) error
	AddGift(ctx context.Context, gift *models.BattleGift) error
	AddViewer(ctx context.Context, battleID, userID uint) (added bool, viewerCount int, err error)
}

type battleRepository struct {
	db *gorm.DB
}

// NewBattleRepository creates a new BattleRepository
func NewBattleRepository(db *gorm.DB) BattleRepository {
	return &battleRepository{db: db}
}

func (r *battleRepository) Create(ctx context.Context, battle *models.Battle) error {
	return r.db.WithContext(ctx).Create(battle).Error
}

// GetByID loads the full aggregate: participants, ordered arguments and
// gifts, votes with voter identities, and the winner when set.
func (r *battleRepository) GetByID(ctx context.Context, id uint) (*models.Battle, error) {
	var battle models.Battle
	err := r.db.WithContext(ctx).
		Preload("Challenger").
		Preload("Opponent").
		Preload("Winner").
		Preload("Arguments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Arguments.User").
		Preload("Votes.Voter").
		Preload("Votes").
		Preload("Gifts", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Gifts.From").
		Preload("Gifts.To").
		First(&battle, id).Error
	if err != nil {
		return nil, err
	}
	return &battle, nil
}

func (r *battleRepository) ListByMatch(ctx context.Context, matchID string, statuses []models.BattleStatus) ([]*models.Battle, error) {
	var battles []*models.Battle
	q := r.db.WithContext(ctx).
		Preload("Challenger").
		Preload("Opponent").
		Preload("Winner").
		Where("match_id = ?", matchID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("created_at desc").Find(&battles).Error
	return battles, err
}

// ListOverdue returns pending or active battles whose end time has passed,
// for the expiry sweeper.
func (r *battleRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.Battle, error) {
	var battles []*models.Battle
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.BattleStatus{models.BattlePending, models.BattleActive}).
		Where("end_time <= ?", now).
		Find(&battles).Error
	return battles, err
}

// Update persists the battle row itself; association rows are written through
// their dedicated methods, never as a side effect of saving the aggregate.
func (r *battleRepository) Update(ctx context.Context, battle *models.Battle) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(battle).Error
}

func (r *battleRepository) AddArgument(ctx context.Context, arg *models.BattleArgument) error {
	return r.db.WithContext(ctx).Create(arg).Error
}

// UpsertVote inserts the voter's vote or, when the voter already voted on
// this battle, overwrites the choice and its timestamp.
func (r *battleRepository) UpsertVote(ctx context.Context, vote *models.BattleVote) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "voter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"voted_for_id", "voted_at"}),
	}).Create(vote).Error
}

func (r *battleRepository) AddGift(ctx context.Context, gift *models.BattleGift) error {
	return r.db.WithContext(ctx).Create(gift).Error
}

// AddViewer idempotently registers a viewer. The first sighting of a user
// bumps the battle's viewer count; repeats are no-ops. Returns whether a row
// was added and the current viewer count.
func (r *battleRepository) AddViewer(ctx context.Context, battleID, userID uint) (bool, int, error) {
	var added bool
	var viewerCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.BattleViewer{BattleID: battleID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		if added {
			if err := tx.Model(&models.Battle{}).Where("id = ?", battleID).
				UpdateColumn("viewer_count", gorm.Expr("viewer_count + 1")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Battle{}).Where("id = ?", battleID).
			Select("viewer_count").Scan(&viewerCount).Error
	})
	return added, viewerCount, err
}

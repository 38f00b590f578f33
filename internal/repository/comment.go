package repository

import (
	"context"

	"terrace/internal/models"

	"gorm.io/gorm"
)

// replyPreviewLimit is the number of most recent replies loaded with each
// thread root; full reply pages go through ListReplies.
const replyPreviewLimit = 3

// CommentRepository defines interface for comment thread operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	CreateReply(ctx context.Context, reply *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListRoots(ctx context.Context, matchID string, page, limit int) ([]*models.Comment, int64, error)
	ListReplies(ctx context.Context, parentID uint, page, limit int) ([]*models.Comment, int64, error)
	ToggleLike(ctx context.Context, commentID, userID uint) (liked bool, likeCount int, err error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// CreateReply inserts the reply and bumps the parent's reply count in one
// transaction, so a failed insert never touches the parent.
func (r *commentRepository) CreateReply(ctx context.Context, reply *models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reply).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("id = ?", *reply.ParentCommentID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error
	})
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListRoots returns a page of thread roots for a match, newest first, each
// carrying a bounded preview of its most recent replies.
func (r *commentRepository) ListRoots(ctx context.Context, matchID string, page, limit int) ([]*models.Comment, int64, error) {
	var comments []*models.Comment
	base := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("match_id = ? AND parent_comment_id IS NULL", matchID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("User").
		Where("match_id = ? AND parent_comment_id IS NULL", matchID).
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	// GORM cannot limit a preload per parent row, so previews are loaded per
	// root. The page size bounds the extra queries.
	for _, root := range comments {
		var preview []models.Comment
		err := r.db.WithContext(ctx).
			Preload("User").
			Where("parent_comment_id = ?", root.ID).
			Order("created_at desc").
			Limit(replyPreviewLimit).
			Find(&preview).Error
		if err != nil {
			return nil, 0, err
		}
		root.Replies = preview
	}

	return comments, total, nil
}

// ListReplies returns a page of a comment's replies, newest first.
func (r *commentRepository) ListReplies(ctx context.Context, parentID uint, page, limit int) ([]*models.Comment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("parent_comment_id = ?", parentID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var replies []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("parent_comment_id = ?", parentID).
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&replies).Error
	return replies, total, err
}

// ToggleLike flips userID's like on the comment and keeps the denormalized
// like count in step, atomically.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID uint) (bool, int, error) {
	var liked bool
	var likeCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
			Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected > 0 {
			liked = false
			if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).
				UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
				return err
			}
		} else {
			liked = true
			if err := tx.Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Comment{}).Where("id = ?", commentID).
			Select("like_count").Scan(&likeCount).Error
	})
	return liked, likeCount, err
}

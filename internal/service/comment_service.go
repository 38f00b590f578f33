package service

import (
	"context"
	"errors"
	"math"
	"time"

	"terrace/internal/models"
	"terrace/internal/notifications"
	"terrace/internal/repository"
	"terrace/internal/validation"

	"gorm.io/gorm"
)

// CommentService owns match comment threads: creation, bounded-depth
// replies, like toggling and paginated reads.
type CommentService struct {
	commentRepo repository.CommentRepository
	matchRepo   repository.MatchRepository
	broadcaster Broadcaster
	locks       *keyedLocks
}

// NewCommentService creates a CommentService over the given collaborators.
func NewCommentService(
	commentRepo repository.CommentRepository,
	matchRepo repository.MatchRepository,
	broadcaster Broadcaster,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		matchRepo:   matchRepo,
		broadcaster: broadcaster,
		locks:       newKeyedLocks(),
	}
}

// AddCommentInput carries a new comment or reply.
type AddCommentInput struct {
	MatchID         string
	UserID          uint
	Content         string
	Kind            models.CommentKind
	MediaPath       string
	ParentCommentID *uint
}

// AddComment creates a thread root or, when ParentCommentID is set, a reply.
// Replies past the depth ceiling are rejected before anything is written, so
// a rejected reply leaves the parent untouched.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	kind := in.Kind
	if kind == "" {
		kind = models.CommentText
	}
	content := validation.SanitizeContent(in.Content)
	switch kind {
	case models.CommentText:
		if content == "" {
			return nil, models.NewInvalidRequestError("Comment content is required")
		}
	case models.CommentMedia:
		if in.MediaPath == "" {
			return nil, models.NewInvalidRequestError("Media comments require a media path")
		}
	default:
		return nil, models.NewInvalidRequestError("Unknown comment kind")
	}

	exists, err := s.matchRepo.Exists(ctx, in.MatchID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !exists {
		return nil, models.NewInvalidRequestError("Referenced match does not exist")
	}

	comment := &models.Comment{
		MatchID:   in.MatchID,
		UserID:    in.UserID,
		Content:   content,
		Kind:      kind,
		MediaPath: in.MediaPath,
	}

	if in.ParentCommentID == nil {
		if err := s.commentRepo.Create(ctx, comment); err != nil {
			return nil, models.NewInternalError(err)
		}
	} else {
		created, err := s.createReply(ctx, comment, *in.ParentCommentID)
		if err != nil {
			return nil, err
		}
		comment = created
	}

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	created.TimeAgo = created.ComputeTimeAgo(time.Now())

	s.broadcaster.Publish(notifications.MatchRoom(in.MatchID), notifications.Event{
		Type:    notifications.EventCommentCreated,
		Payload: created,
	})
	return created, nil
}

// createReply validates the parent under its lock, inherits depth and match
// from it, and writes the reply together with the parent's count bump.
func (s *CommentService) createReply(ctx context.Context, reply *models.Comment, parentID uint) (*models.Comment, error) {
	unlock := s.locks.Lock(commentKey(parentID))
	defer unlock()

	parent, err := s.getComment(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.MatchID != reply.MatchID {
		return nil, models.NewInvalidRequestError("Parent comment belongs to a different match")
	}
	if parent.Depth+1 > models.MaxCommentDepth {
		return nil, models.NewMaxDepthExceededError()
	}

	reply.ParentCommentID = &parent.ID
	reply.Depth = parent.Depth + 1
	if err := s.commentRepo.CreateReply(ctx, reply); err != nil {
		return nil, models.NewInternalError(err)
	}
	return reply, nil
}

// LikeResult reports the caller's like state after a toggle and the
// comment's current total.
type LikeResult struct {
	CommentID uint `json:"comment_id"`
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// ToggleLike flips the caller's like on a comment and announces the new
// count to the match room.
func (s *CommentService) ToggleLike(ctx context.Context, commentID, userID uint) (*LikeResult, error) {
	unlock := s.locks.Lock(commentKey(commentID))
	defer unlock()

	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	liked, likeCount, err := s.commentRepo.ToggleLike(ctx, commentID, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	result := &LikeResult{CommentID: commentID, Liked: liked, LikeCount: likeCount}
	s.broadcaster.Publish(notifications.MatchRoom(comment.MatchID), notifications.Event{
		Type: notifications.EventCommentLikeUpdate,
		Payload: map[string]interface{}{
			"comment_id": commentID,
			"like_count": likeCount,
		},
	})
	return result, nil
}

// CommentPage is one page of a match's thread roots.
type CommentPage struct {
	Comments      []*models.Comment `json:"comments"`
	CurrentPage   int               `json:"current_page"`
	TotalPages    int               `json:"total_pages"`
	TotalComments int64             `json:"total_comments"`
}

// ListComments returns a page of a match's thread roots, newest first, each
// with a short reply preview and display-ready timestamps.
func (s *CommentService) ListComments(ctx context.Context, matchID string, page, limit int) (*CommentPage, error) {
	comments, total, err := s.commentRepo.ListRoots(ctx, matchID, page, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := time.Now()
	for _, c := range comments {
		c.TimeAgo = c.ComputeTimeAgo(now)
		for i := range c.Replies {
			c.Replies[i].TimeAgo = c.Replies[i].ComputeTimeAgo(now)
		}
	}

	return &CommentPage{
		Comments:      comments,
		CurrentPage:   page,
		TotalPages:    totalPages(total, limit),
		TotalComments: total,
	}, nil
}

// ReplyPage is one page of a comment's replies.
type ReplyPage struct {
	Replies      []*models.Comment `json:"replies"`
	CurrentPage  int               `json:"current_page"`
	TotalPages   int               `json:"total_pages"`
	TotalReplies int64             `json:"total_replies"`
}

// ListReplies returns a page of a comment's replies, newest first.
func (s *CommentService) ListReplies(ctx context.Context, parentID uint, page, limit int) (*ReplyPage, error) {
	if _, err := s.getComment(ctx, parentID); err != nil {
		return nil, err
	}

	replies, total, err := s.commentRepo.ListReplies(ctx, parentID, page, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := time.Now()
	for _, r := range replies {
		r.TimeAgo = r.ComputeTimeAgo(now)
	}

	return &ReplyPage{
		Replies:      replies,
		CurrentPage:  page,
		TotalPages:   totalPages(total, limit),
		TotalReplies: total,
	}, nil
}

func (s *CommentService) getComment(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return comment, nil
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

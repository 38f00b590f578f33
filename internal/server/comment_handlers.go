package server

import (
	"terrace/internal/models"
	"terrace/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment creates a comment or reply on a match thread (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	matchID := c.Params("matchId")
	if matchID == "" {
		return respondError(c, models.NewInvalidRequestError("Invalid matchId"))
	}

	var req struct {
		Content         string `json:"content"`
		Kind            string `json:"kind"`
		MediaPath       string `json:"media_path"`
		ParentCommentID *uint  `json:"parent_comment_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewInvalidRequestError("Invalid request body"))
	}

	comment, err := s.commentService.AddComment(ctx, service.AddCommentInput{
		MatchID:         matchID,
		UserID:          userID,
		Content:         req.Content,
		Kind:            models.CommentKind(req.Kind),
		MediaPath:       req.MediaPath,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments returns a page of a match's comment threads (protected)
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()

	matchID := c.Params("matchId")
	if matchID == "" {
		return respondError(c, models.NewInvalidRequestError("Invalid matchId"))
	}

	p := parsePagination(c)
	page, err := s.commentService.ListComments(ctx, matchID, p.Page, p.Limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(page)
}

// GetCommentReplies returns a page of a comment's replies (protected)
func (s *Server) GetCommentReplies(c *fiber.Ctx) error {
	ctx := c.UserContext()

	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c)
	page, err := s.commentService.ListReplies(ctx, commentID, p.Page, p.Limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(page)
}

// ToggleCommentLike flips the caller's like on a comment (protected)
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.commentService.ToggleLike(ctx, commentID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

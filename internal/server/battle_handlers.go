package server

import (
	"time"

	"terrace/internal/models"
	"terrace/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateBattle opens a new banter challenge (protected)
func (s *Server) CreateBattle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req struct {
		MatchID    string    `json:"match_id"`
		OpponentID uint      `json:"opponent_id"`
		Topic      string    `json:"topic"`
		StartTime  time.Time `json:"start_time"`
		EndTime    time.Time `json:"end_time"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewInvalidRequestError("Invalid request body"))
	}
	if req.MatchID == "" {
		return respondError(c, models.NewInvalidRequestError("match_id is required"))
	}
	if req.StartTime.IsZero() {
		req.StartTime = time.Now()
	}
	if req.EndTime.IsZero() {
		req.EndTime = req.StartTime.Add(30 * time.Minute)
	}

	battle, err := s.battleService.CreateBattle(ctx, service.CreateBattleInput{
		MatchID:      req.MatchID,
		ChallengerID: userID,
		OpponentID:   req.OpponentID,
		Topic:        req.Topic,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(battle)
}

// AcceptBattle lets the challenged opponent start the battle (protected)
func (s *Server) AcceptBattle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	battleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	battle, err := s.battleService.AcceptBattle(ctx, battleID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(battle)
}

// AddArgument posts a participant's banter entry (protected)
func (s *Server) AddArgument(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	battleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content   string `json:"content"`
		MediaPath string `json:"media_path"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewInvalidRequestError("Invalid request body"))
	}

	arg, err := s.battleService.AddArgument(ctx, service.AddArgumentInput{
		BattleID:  battleID,
		UserID:    userID,
		Content:   req.Content,
		MediaPath: req.MediaPath,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(arg)
}

// CastVote records or replaces the caller's vote (protected)
func (s *Server) CastVote(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	battleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		VotedForID uint `json:"voted_for_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewInvalidRequestError("Invalid request body"))
	}

	tally, err := s.battleService.CastVote(ctx, service.CastVoteInput{
		BattleID:   battleID,
		VoterID:    userID,
		VotedForID: req.VotedForID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"battle_id":   battleID,
		"votes_count": tally,
	})
}

// SendGift sends a gift to a battle participant (protected)
func (s *Server) SendGift(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	battleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		ToID     uint   `json:"to_id"`
		GiftType string `json:"gift_type"`
		Amount   int    `json:"amount"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewInvalidRequestError("Invalid request body"))
	}

	gift, err := s.battleService.SendGift(ctx, service.SendGiftInput{
		BattleID: battleID,
		FromID:   userID,
		ToID:     req.ToID,
		GiftType: req.GiftType,
		Amount:   req.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(gift)
}

// EndBattle finishes an active battle and returns the result (protected)
func (s *Server) EndBattle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	battleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	battle, err := s.battleService.EndBattle(ctx, battleID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(battle)
}

// GetBattle returns the full battle aggregate and counts the caller as a
// viewer (protected)
func (s *Server) GetBattle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	battleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	battle, err := s.battleService.GetBattle(ctx, battleID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(battle)
}

// GetMatchBattles lists a match's battles, optionally filtered by status
// (protected)
func (s *Server) GetMatchBattles(c *fiber.Ctx) error {
	ctx := c.UserContext()

	matchID := c.Params("matchId")
	if matchID == "" {
		return respondError(c, models.NewInvalidRequestError("Invalid matchId"))
	}

	battles, err := s.battleService.ListMatchBattles(ctx, matchID, c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"match_id": matchID,
		"battles":  battles,
	})
}

package service

import (
	"context"
	"errors"
	"time"

	"terrace/internal/models"
	"terrace/internal/notifications"
	"terrace/internal/observability"
	"terrace/internal/repository"
	"terrace/internal/validation"

	"gorm.io/gorm"
)

// Broadcaster is the slice of the fanout layer the services need: publish a
// typed event to a room, fire-and-forget. It is injected at construction
// time so every mutation path holds an explicit handle to the fanout layer.
type Broadcaster interface {
	Publish(room string, event notifications.Event)
}

// BattleService owns the banter battle lifecycle: challenge, accept,
// arguments, votes, gifts, viewers and the completion that decides winner
// and reward.
//
// All mutations of one battle are serialized through a per-battle lock, and
// events are published while that lock is held, so the event stream for a
// battle matches the order its mutations committed.
type BattleService struct {
	battleRepo  repository.BattleRepository
	matchRepo   repository.MatchRepository
	userRepo    repository.UserRepository
	broadcaster Broadcaster
	locks       *keyedLocks
}

// NewBattleService creates a BattleService over the given collaborators.
func NewBattleService(
	battleRepo repository.BattleRepository,
	matchRepo repository.MatchRepository,
	userRepo repository.UserRepository,
	broadcaster Broadcaster,
) *BattleService {
	return &BattleService{
		battleRepo:  battleRepo,
		matchRepo:   matchRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		locks:       newKeyedLocks(),
	}
}

// CreateBattleInput carries a challenge request.
type CreateBattleInput struct {
	MatchID      string
	ChallengerID uint
	OpponentID   uint
	Topic        string
	StartTime    time.Time
	EndTime      time.Time
}

// CreateBattle opens a pending challenge and announces it to the match room.
func (s *BattleService) CreateBattle(ctx context.Context, in CreateBattleInput) (*models.Battle, error) {
	if in.OpponentID == in.ChallengerID {
		return nil, models.NewInvalidRequestError("Cannot challenge yourself")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, models.NewInvalidRequestError("Battle end time must be after its start time")
	}

	exists, err := s.matchRepo.Exists(ctx, in.MatchID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !exists {
		return nil, models.NewInvalidRequestError("Referenced match does not exist")
	}

	if ok, err := s.userRepo.Exists(ctx, in.OpponentID); err != nil {
		return nil, models.NewInternalError(err)
	} else if !ok {
		return nil, models.NewInvalidRequestError("Opponent does not exist")
	}

	battle := &models.Battle{
		MatchID:      in.MatchID,
		ChallengerID: in.ChallengerID,
		OpponentID:   in.OpponentID,
		Status:       models.BattlePending,
		Topic:        validation.SanitizeContent(in.Topic),
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
	}
	if err := s.battleRepo.Create(ctx, battle); err != nil {
		return nil, models.NewInternalError(err)
	}

	created, err := s.battleRepo.GetByID(ctx, battle.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	s.broadcaster.Publish(notifications.MatchRoom(in.MatchID), notifications.Event{
		Type:    notifications.EventBattleCreated,
		Payload: created,
	})
	return created, nil
}

// AcceptBattle moves a pending challenge to active. Only the challenged
// opponent may accept.
func (s *BattleService) AcceptBattle(ctx context.Context, battleID, callerID uint) (*models.Battle, error) {
	unlock := s.locks.Lock(battleKey(battleID))
	defer unlock()

	battle, err := s.getBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if callerID != battle.OpponentID {
		return nil, models.NewForbiddenError("Only the challenged opponent can accept")
	}
	if !battle.Status.CanTransition(models.BattleActive) {
		return nil, models.NewInvalidStateError("Battle can only be accepted when pending")
	}

	battle.Status = models.BattleActive
	if err := s.battleRepo.Update(ctx, battle); err != nil {
		return nil, models.NewInternalError(err)
	}

	s.broadcaster.Publish(notifications.BattleRoom(battle.ID), notifications.Event{
		Type: notifications.EventBattleStarted,
		Payload: map[string]interface{}{
			"battle_id": battle.ID,
			"status":    battle.Status,
		},
	})
	return battle, nil
}

// AddArgumentInput carries a participant's banter entry.
type AddArgumentInput struct {
	BattleID  uint
	UserID    uint
	Content   string
	MediaPath string
}

// AddArgument appends a participant's argument to an active battle.
func (s *BattleService) AddArgument(ctx context.Context, in AddArgumentInput) (*models.BattleArgument, error) {
	unlock := s.locks.Lock(battleKey(in.BattleID))
	defer unlock()

	battle, err := s.getBattle(ctx, in.BattleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != models.BattleActive {
		return nil, models.NewInvalidStateError("Can only add arguments to active battles")
	}
	if !battle.IsParticipant(in.UserID) {
		return nil, models.NewForbiddenError("Only battle participants can add arguments")
	}

	content := validation.SanitizeContent(in.Content)
	if content == "" && in.MediaPath == "" {
		return nil, models.NewInvalidRequestError("Argument content is required")
	}

	arg := &models.BattleArgument{
		BattleID:  battle.ID,
		UserID:    in.UserID,
		Content:   content,
		MediaPath: in.MediaPath,
	}
	if err := s.battleRepo.AddArgument(ctx, arg); err != nil {
		return nil, models.NewInternalError(err)
	}
	if user, err := s.userRepo.GetByID(ctx, in.UserID); err == nil {
		arg.User = *user
	}

	s.broadcaster.Publish(notifications.BattleRoom(battle.ID), notifications.Event{
		Type: notifications.EventBattleNewArgument,
		Payload: map[string]interface{}{
			"battle_id": battle.ID,
			"argument":  arg,
		},
	})
	return arg, nil
}

// CastVoteInput carries a spectator's vote.
type CastVoteInput struct {
	BattleID   uint
	VoterID    uint
	VotedForID uint
}

// CastVote records or replaces the voter's vote on an active battle and
// returns the recomputed tally. A voter may change their mind; only the
// latest choice counts.
func (s *BattleService) CastVote(ctx context.Context, in CastVoteInput) (models.VoteTally, error) {
	unlock := s.locks.Lock(battleKey(in.BattleID))
	defer unlock()

	battle, err := s.getBattle(ctx, in.BattleID)
	if err != nil {
		return models.VoteTally{}, err
	}
	if battle.Status != models.BattleActive {
		return models.VoteTally{}, models.NewInvalidStateError("Can only vote on active battles")
	}
	if !battle.IsParticipant(in.VotedForID) {
		return models.VoteTally{}, models.NewInvalidRequestError("Can only vote for battle participants")
	}

	vote := &models.BattleVote{
		BattleID:   battle.ID,
		VoterID:    in.VoterID,
		VotedForID: in.VotedForID,
		VotedAt:    time.Now(),
	}
	if err := s.battleRepo.UpsertVote(ctx, vote); err != nil {
		return models.VoteTally{}, models.NewInternalError(err)
	}

	// Mirror the upsert on the loaded snapshot so the tally reflects it.
	replaced := false
	for i := range battle.Votes {
		if battle.Votes[i].VoterID == in.VoterID {
			battle.Votes[i].VotedForID = in.VotedForID
			replaced = true
			break
		}
	}
	if !replaced {
		battle.Votes = append(battle.Votes, *vote)
	}
	tally := battle.TallyVotes()

	s.broadcaster.Publish(notifications.BattleRoom(battle.ID), notifications.Event{
		Type: notifications.EventBattleNewVote,
		Payload: map[string]interface{}{
			"battle_id":   battle.ID,
			"votes_count": tally,
		},
	})
	return tally, nil
}

// SendGiftInput carries a gift sent to a participant.
type SendGiftInput struct {
	BattleID uint
	FromID   uint
	ToID     uint
	GiftType string
	Amount   int
}

// SendGift appends a gift to an active battle. Gifts are additive and never
// replaced; concurrent gifts from distinct senders all land.
func (s *BattleService) SendGift(ctx context.Context, in SendGiftInput) (*models.BattleGift, error) {
	unlock := s.locks.Lock(battleKey(in.BattleID))
	defer unlock()

	battle, err := s.getBattle(ctx, in.BattleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != models.BattleActive {
		return nil, models.NewInvalidStateError("Can only send gifts in active battles")
	}
	if !battle.IsParticipant(in.ToID) {
		return nil, models.NewInvalidRequestError("Can only send gifts to battle participants")
	}
	if in.Amount <= 0 {
		return nil, models.NewInvalidRequestError("Gift amount must be positive")
	}
	if in.GiftType == "" {
		return nil, models.NewInvalidRequestError("Gift type is required")
	}

	gift := &models.BattleGift{
		BattleID: battle.ID,
		FromID:   in.FromID,
		ToID:     in.ToID,
		GiftType: in.GiftType,
		Amount:   in.Amount,
	}
	if err := s.battleRepo.AddGift(ctx, gift); err != nil {
		return nil, models.NewInternalError(err)
	}
	if from, err := s.userRepo.GetByID(ctx, in.FromID); err == nil {
		gift.From = *from
	}
	if to, err := s.userRepo.GetByID(ctx, in.ToID); err == nil {
		gift.To = *to
	}

	s.broadcaster.Publish(notifications.BattleRoom(battle.ID), notifications.Event{
		Type: notifications.EventBattleNewGift,
		Payload: map[string]interface{}{
			"battle_id": battle.ID,
			"gift":      gift,
		},
	})
	return gift, nil
}

// EndBattle completes an active battle: tallies votes, decides the winner,
// computes the reward and announces the result. Only a participant may end
// a battle.
func (s *BattleService) EndBattle(ctx context.Context, battleID, callerID uint) (*models.Battle, error) {
	unlock := s.locks.Lock(battleKey(battleID))
	defer unlock()

	battle, err := s.getBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !battle.IsParticipant(callerID) {
		return nil, models.NewForbiddenError("Only battle participants can end the battle")
	}
	if battle.Status != models.BattleActive {
		return nil, models.NewInvalidStateError("Can only end active battles")
	}

	return s.endLocked(ctx, battle, "participant")
}

// endLocked finishes an active battle. Callers must hold the battle's lock
// and have verified status == active.
func (s *BattleService) endLocked(ctx context.Context, battle *models.Battle, source string) (*models.Battle, error) {
	tally := battle.TallyVotes()
	winnerID := DecideWinner(battle, tally)
	reward := CalculateReward(battle, tally)

	battle.Status = models.BattleCompleted
	battle.WinnerID = &winnerID
	battle.Reward = reward
	if err := s.battleRepo.Update(ctx, battle); err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.BattlesEndedTotal.WithLabelValues(source).Inc()

	ended, err := s.battleRepo.GetByID(ctx, battle.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	s.broadcaster.Publish(notifications.BattleRoom(ended.ID), notifications.Event{
		Type:    notifications.EventBattleEnded,
		Payload: ended,
	})
	return ended, nil
}

// AddViewer idempotently registers viewerID as having seen the battle. The
// first sighting bumps the durable viewer count and announces it; repeats
// are no-ops.
func (s *BattleService) AddViewer(ctx context.Context, battleID, viewerID uint) (int, error) {
	unlock := s.locks.Lock(battleKey(battleID))
	defer unlock()

	if _, err := s.getBattle(ctx, battleID); err != nil {
		return 0, err
	}

	added, viewerCount, err := s.battleRepo.AddViewer(ctx, battleID, viewerID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	if added {
		s.broadcaster.Publish(notifications.BattleRoom(battleID), notifications.Event{
			Type: notifications.EventBattleViewerUpdate,
			Payload: map[string]interface{}{
				"battle_id":    battleID,
				"viewer_count": viewerCount,
			},
		})
	}
	return viewerCount, nil
}

// GetBattle loads the full battle aggregate and registers the reader as a
// viewer on the way out.
func (s *BattleService) GetBattle(ctx context.Context, battleID, viewerID uint) (*models.Battle, error) {
	battle, err := s.getBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	viewerCount, err := s.AddViewer(ctx, battleID, viewerID)
	if err != nil {
		return nil, err
	}
	battle.ViewerCount = viewerCount
	return battle, nil
}

// ListMatchBattles returns a match's battles, newest first. An empty status
// filter defaults to pending and active battles, mirroring the match feed.
func (s *BattleService) ListMatchBattles(ctx context.Context, matchID string, status string) ([]*models.Battle, error) {
	statuses := []models.BattleStatus{models.BattlePending, models.BattleActive}
	if status != "" {
		statuses = []models.BattleStatus{models.BattleStatus(status)}
	}
	battles, err := s.battleRepo.ListByMatch(ctx, matchID, statuses)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return battles, nil
}

// ExpireOverdue sweeps battles whose end time has passed: unaccepted
// challenges are cancelled, running battles are ended through the normal
// completion path. Returns how many battles were transitioned.
func (s *BattleService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.battleRepo.ListOverdue(ctx, now)
	if err != nil {
		return 0, models.NewInternalError(err)
	}

	transitioned := 0
	for _, stale := range overdue {
		if err := func() error {
			unlock := s.locks.Lock(battleKey(stale.ID))
			defer unlock()

			battle, err := s.getBattle(ctx, stale.ID)
			if err != nil {
				return err
			}
			// Re-check under the lock; a participant may have raced us.
			if battle.EndTime.After(now) {
				return nil
			}
			switch battle.Status {
			case models.BattlePending:
				battle.Status = models.BattleCancelled
				if err := s.battleRepo.Update(ctx, battle); err != nil {
					return models.NewInternalError(err)
				}
				transitioned++
			case models.BattleActive:
				if _, err := s.endLocked(ctx, battle, "expiry"); err != nil {
					return err
				}
				transitioned++
			}
			return nil
		}(); err != nil {
			return transitioned, err
		}
	}
	return transitioned, nil
}

func (s *BattleService) getBattle(ctx context.Context, id uint) (*models.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Battle", id)
		}
		return nil, models.NewInternalError(err)
	}
	return battle, nil
}

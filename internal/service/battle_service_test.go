package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"terrace/internal/models"
	"terrace/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// battleRepoStub is a stub for repository.BattleRepository.
type battleRepoStub struct {
	createFn      func(context.Context, *models.Battle) error
	getByIDFn     func(context.Context, uint) (*models.Battle, error)
	listByMatchFn func(context.Context, string, []models.BattleStatus) ([]*models.Battle, error)
	listOverdueFn func(context.Context, time.Time) ([]*models.Battle, error)
	updateFn      func(context.Context, *models.Battle) error
	addArgumentFn func(context.Context, *models.BattleArgument) error
	upsertVoteFn  func(context.Context, *models.BattleVote) error
	addGiftFn     func(context.Context, *models.BattleGift) error
	addViewerFn   func(context.Context, uint, uint) (bool, int, error)
}

func (s *battleRepoStub) Create(ctx context.Context, b *models.Battle) error {
	return s.createFn(ctx, b)
}
func (s *battleRepoStub) GetByID(ctx context.Context, id uint) (*models.Battle, error) {
	return s.getByIDFn(ctx, id)
}
func (s *battleRepoStub) ListByMatch(ctx context.Context, matchID string, statuses []models.BattleStatus) ([]*models.Battle, error) {
	return s.listByMatchFn(ctx, matchID, statuses)
}
func (s *battleRepoStub) ListOverdue(ctx context.Context, now time.Time) ([]*models.Battle, error) {
	return s.listOverdueFn(ctx, now)
}
func (s *battleRepoStub) Update(ctx context.Context, b *models.Battle) error {
	return s.updateFn(ctx, b)
}
func (s *battleRepoStub) AddArgument(ctx context.Context, a *models.BattleArgument) error {
	return s.addArgumentFn(ctx, a)
}
func (s *battleRepoStub) UpsertVote(ctx context.Context, v *models.BattleVote) error {
	return s.upsertVoteFn(ctx, v)
}
func (s *battleRepoStub) AddGift(ctx context.Context, g *models.BattleGift) error {
	return s.addGiftFn(ctx, g)
}
func (s *battleRepoStub) AddViewer(ctx context.Context, battleID, userID uint) (bool, int, error) {
	return s.addViewerFn(ctx, battleID, userID)
}

func noopBattleRepo() *battleRepoStub {
	return &battleRepoStub{
		createFn: func(_ context.Context, b *models.Battle) error {
			b.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Battle, error) {
			return &models.Battle{ID: id, ChallengerID: 1, OpponentID: 2, Status: models.BattleActive}, nil
		},
		listByMatchFn: func(_ context.Context, _ string, _ []models.BattleStatus) ([]*models.Battle, error) {
			return nil, nil
		},
		listOverdueFn: func(_ context.Context, _ time.Time) ([]*models.Battle, error) { return nil, nil },
		updateFn:      func(_ context.Context, _ *models.Battle) error { return nil },
		addArgumentFn: func(_ context.Context, _ *models.BattleArgument) error { return nil },
		upsertVoteFn:  func(_ context.Context, _ *models.BattleVote) error { return nil },
		addGiftFn:     func(_ context.Context, _ *models.BattleGift) error { return nil },
		addViewerFn:   func(_ context.Context, _, _ uint) (bool, int, error) { return true, 1, nil },
	}
}

// matchRepoStub is a stub for repository.MatchRepository.
type matchRepoStub struct {
	getByMatchIDFn func(context.Context, string) (*models.Match, error)
	existsFn       func(context.Context, string) (bool, error)
	upsertFn       func(context.Context, *models.Match) error
}

func (s *matchRepoStub) GetByMatchID(ctx context.Context, matchID string) (*models.Match, error) {
	return s.getByMatchIDFn(ctx, matchID)
}
func (s *matchRepoStub) Exists(ctx context.Context, matchID string) (bool, error) {
	return s.existsFn(ctx, matchID)
}
func (s *matchRepoStub) Upsert(ctx context.Context, m *models.Match) error {
	return s.upsertFn(ctx, m)
}

func noopMatchRepo() *matchRepoStub {
	return &matchRepoStub{
		getByMatchIDFn: func(_ context.Context, id string) (*models.Match, error) {
			return &models.Match{MatchID: id}, nil
		},
		existsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		upsertFn: func(_ context.Context, _ *models.Match) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn  func(context.Context, *models.User) error
	getByIDFn func(context.Context, uint) (*models.User, error)
	existsFn  func(context.Context, uint) (bool, error)
}

func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	return s.createFn(ctx, u)
}
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn:  func(_ context.Context, _ *models.User) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		existsFn:  func(_ context.Context, _ uint) (bool, error) { return true, nil },
	}
}

// broadcasterStub records published events in order.
type broadcasterStub struct {
	mu     sync.Mutex
	events []notifications.Event
	rooms  []string
}

func (s *broadcasterStub) Publish(room string, event notifications.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append(s.rooms, room)
	s.events = append(s.events, event)
}

func (s *broadcasterStub) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestBattleService_CreateBattle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("self-challenge is rejected and persists nothing", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		created := false
		repo.createFn = func(_ context.Context, _ *models.Battle) error {
			created = true
			return nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

		_, err := svc.CreateBattle(ctx, CreateBattleInput{
			MatchID: "m1", ChallengerID: 1, OpponentID: 1,
			StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		})
		assertAppErrorCode(t, err, models.CodeInvalidRequest)
		assert.False(t, created)
	})

	t.Run("missing match is rejected", func(t *testing.T) {
		t.Parallel()
		matchRepo := noopMatchRepo()
		matchRepo.existsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
		svc := NewBattleService(noopBattleRepo(), matchRepo, noopUserRepo(), &broadcasterStub{})

		_, err := svc.CreateBattle(ctx, CreateBattleInput{
			MatchID: "nope", ChallengerID: 1, OpponentID: 2,
			StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		})
		assertAppErrorCode(t, err, models.CodeInvalidRequest)
	})

	t.Run("creates pending battle and announces it to the match room", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Battle, error) {
			return &models.Battle{ID: id, MatchID: "m1", ChallengerID: 1, OpponentID: 2, Status: models.BattlePending}, nil
		}
		bc := &broadcasterStub{}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), bc)

		battle, err := svc.CreateBattle(ctx, CreateBattleInput{
			MatchID: "m1", ChallengerID: 1, OpponentID: 2, Topic: "Who bosses midfield?",
			StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, models.BattlePending, battle.Status)
		require.Equal(t, []string{notifications.EventBattleCreated}, bc.eventTypes())
		assert.Equal(t, []string{"match_m1"}, bc.rooms)
	})
}

func TestBattleService_AcceptBattle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pendingRepo := func() *battleRepoStub {
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Battle, error) {
			return &models.Battle{ID: id, ChallengerID: 1, OpponentID: 2, Status: models.BattlePending}, nil
		}
		return repo
	}

	t.Run("only the opponent may accept", func(t *testing.T) {
		t.Parallel()
		svc := NewBattleService(pendingRepo(), noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.AcceptBattle(ctx, 1, 1)
		assertAppErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("accepting a non-pending battle fails", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo() // returns active battles
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.AcceptBattle(ctx, 1, 2)
		assertAppErrorCode(t, err, models.CodeInvalidState)
	})

	t.Run("opponent accept activates and announces", func(t *testing.T) {
		t.Parallel()
		bc := &broadcasterStub{}
		svc := NewBattleService(pendingRepo(), noopMatchRepo(), noopUserRepo(), bc)

		battle, err := svc.AcceptBattle(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, models.BattleActive, battle.Status)
		assert.Equal(t, []string{notifications.EventBattleStarted}, bc.eventTypes())
	})

	t.Run("missing battle maps to not found", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, _ uint) (*models.Battle, error) {
			return nil, gorm.ErrRecordNotFound
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.AcceptBattle(ctx, 99, 2)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestBattleService_AddArgument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("non-participant is forbidden", func(t *testing.T) {
		t.Parallel()
		svc := NewBattleService(noopBattleRepo(), noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.AddArgument(ctx, AddArgumentInput{BattleID: 1, UserID: 9, Content: "rubbish"})
		assertAppErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("markup is stripped from content", func(t *testing.T) {
		t.Parallel()
		bc := &broadcasterStub{}
		svc := NewBattleService(noopBattleRepo(), noopMatchRepo(), noopUserRepo(), bc)

		arg, err := svc.AddArgument(ctx, AddArgumentInput{
			BattleID: 1, UserID: 1,
			Content: "<script>alert(1)</script>your defence is a turnstile",
		})
		require.NoError(t, err)
		assert.Equal(t, "your defence is a turnstile", arg.Content)
		assert.Equal(t, []string{notifications.EventBattleNewArgument}, bc.eventTypes())
	})

	t.Run("pending battle rejects arguments", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Battle, error) {
			return &models.Battle{ID: id, ChallengerID: 1, OpponentID: 2, Status: models.BattlePending}, nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.AddArgument(ctx, AddArgumentInput{BattleID: 1, UserID: 1, Content: "oi"})
		assertAppErrorCode(t, err, models.CodeInvalidState)
	})
}

func TestBattleService_CastVote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("vote target must be a participant", func(t *testing.T) {
		t.Parallel()
		svc := NewBattleService(noopBattleRepo(), noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.CastVote(ctx, CastVoteInput{BattleID: 1, VoterID: 7, VotedForID: 99})
		assertAppErrorCode(t, err, models.CodeInvalidRequest)
	})

	t.Run("revoting replaces the voter's previous choice in the tally", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Battle, error) {
			return &models.Battle{
				ID: id, ChallengerID: 1, OpponentID: 2, Status: models.BattleActive,
				Votes: []models.BattleVote{{VoterID: 7, VotedForID: 1}},
			}, nil
		}
		bc := &broadcasterStub{}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), bc)

		tally, err := svc.CastVote(ctx, CastVoteInput{BattleID: 1, VoterID: 7, VotedForID: 2})
		require.NoError(t, err)
		assert.Equal(t, models.VoteTally{ChallengerVotes: 0, OpponentVotes: 1}, tally)
		assert.Equal(t, []string{notifications.EventBattleNewVote}, bc.eventTypes())
	})
}

func TestBattleService_SendGift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("amount must be positive", func(t *testing.T) {
		t.Parallel()
		svc := NewBattleService(noopBattleRepo(), noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.SendGift(ctx, SendGiftInput{BattleID: 1, FromID: 7, ToID: 1, GiftType: "pint", Amount: 0})
		assertAppErrorCode(t, err, models.CodeInvalidRequest)
	})

	t.Run("concurrent gifts all land", func(t *testing.T) {
		t.Parallel()
		var mu sync.Mutex
		var gifts []*models.BattleGift
		repo := noopBattleRepo()
		repo.addGiftFn = func(_ context.Context, g *models.BattleGift) error {
			mu.Lock()
			defer mu.Unlock()
			gifts = append(gifts, g)
			return nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.SendGift(ctx, SendGiftInput{
					BattleID: 1, FromID: uint(100 + i), ToID: 1, GiftType: "pint", Amount: 1,
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Len(t, gifts, n)
	})
}

func TestBattleService_EndBattle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("only participants may end", func(t *testing.T) {
		t.Parallel()
		svc := NewBattleService(noopBattleRepo(), noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.EndBattle(ctx, 1, 42)
		assertAppErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("tie awards the opponent with points from gifts", func(t *testing.T) {
		t.Parallel()
		stored := &models.Battle{
			ID: 1, ChallengerID: 1, OpponentID: 2, Status: models.BattleActive,
			Votes: []models.BattleVote{
				{VoterID: 10, VotedForID: 1}, {VoterID: 11, VotedForID: 1}, {VoterID: 12, VotedForID: 1},
				{VoterID: 13, VotedForID: 2}, {VoterID: 14, VotedForID: 2}, {VoterID: 15, VotedForID: 2},
			},
			Gifts: []models.BattleGift{{Amount: 25}, {Amount: 15}},
		}
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, _ uint) (*models.Battle, error) { return stored, nil }
		var saved *models.Battle
		repo.updateFn = func(_ context.Context, b *models.Battle) error {
			saved = b
			return nil
		}
		bc := &broadcasterStub{}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), bc)

		ended, err := svc.EndBattle(ctx, 1, 1)
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.Equal(t, models.BattleCompleted, saved.Status)
		require.NotNil(t, ended.WinnerID)
		assert.Equal(t, uint(2), *ended.WinnerID)
		assert.Equal(t, 3*10+40, ended.Reward.Points)
		assert.Equal(t, []string{notifications.EventBattleEnded}, bc.eventTypes())
	})

	t.Run("ending twice fails on the second call", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Battle, error) {
			return &models.Battle{ID: id, ChallengerID: 1, OpponentID: 2, Status: models.BattleCompleted}, nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})
		_, err := svc.EndBattle(ctx, 1, 1)
		assertAppErrorCode(t, err, models.CodeInvalidState)
	})
}

func TestBattleService_AddViewer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first sighting announces the new count", func(t *testing.T) {
		t.Parallel()
		bc := &broadcasterStub{}
		svc := NewBattleService(noopBattleRepo(), noopMatchRepo(), noopUserRepo(), bc)

		count, err := svc.AddViewer(ctx, 1, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{notifications.EventBattleViewerUpdate}, bc.eventTypes())
	})

	t.Run("repeat sighting stays silent", func(t *testing.T) {
		t.Parallel()
		repo := noopBattleRepo()
		repo.addViewerFn = func(_ context.Context, _, _ uint) (bool, int, error) { return false, 5, nil }
		bc := &broadcasterStub{}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), bc)

		count, err := svc.AddViewer(ctx, 1, 7)
		require.NoError(t, err)
		assert.Equal(t, 5, count)
		assert.Empty(t, bc.eventTypes())
	})
}

func TestBattleService_ExpireOverdue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	t.Run("pending battles are cancelled, active battles are ended", func(t *testing.T) {
		t.Parallel()
		battles := map[uint]*models.Battle{
			1: {ID: 1, ChallengerID: 1, OpponentID: 2, Status: models.BattlePending, EndTime: now.Add(-time.Minute)},
			2: {ID: 2, ChallengerID: 3, OpponentID: 4, Status: models.BattleActive, EndTime: now.Add(-time.Minute)},
		}
		repo := noopBattleRepo()
		repo.listOverdueFn = func(_ context.Context, _ time.Time) ([]*models.Battle, error) {
			return []*models.Battle{battles[1], battles[2]}, nil
		}
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Battle, error) {
			b, ok := battles[id]
			if !ok {
				return nil, gorm.ErrRecordNotFound
			}
			return b, nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

		transitioned, err := svc.ExpireOverdue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, transitioned)
		assert.Equal(t, models.BattleCancelled, battles[1].Status)
		assert.Equal(t, models.BattleCompleted, battles[2].Status)
	})

	t.Run("a battle extended after listing is left alone", func(t *testing.T) {
		t.Parallel()
		stale := &models.Battle{ID: 1, ChallengerID: 1, OpponentID: 2, Status: models.BattlePending, EndTime: now.Add(-time.Minute)}
		repo := noopBattleRepo()
		repo.listOverdueFn = func(_ context.Context, _ time.Time) ([]*models.Battle, error) {
			return []*models.Battle{stale}, nil
		}
		repo.getByIDFn = func(_ context.Context, _ uint) (*models.Battle, error) {
			// Under the lock the battle turns out to have been extended.
			return &models.Battle{ID: 1, ChallengerID: 1, OpponentID: 2, Status: models.BattlePending, EndTime: now.Add(time.Hour)}, nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

		transitioned, err := svc.ExpireOverdue(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, transitioned)
	})
}

func TestBattleService_ListMatchBattles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("defaults to pending and active", func(t *testing.T) {
		t.Parallel()
		var gotStatuses []models.BattleStatus
		repo := noopBattleRepo()
		repo.listByMatchFn = func(_ context.Context, _ string, statuses []models.BattleStatus) ([]*models.Battle, error) {
			gotStatuses = statuses
			return nil, nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

		_, err := svc.ListMatchBattles(ctx, "m1", "")
		require.NoError(t, err)
		assert.Equal(t, []models.BattleStatus{models.BattlePending, models.BattleActive}, gotStatuses)
	})

	t.Run("explicit filter is passed through", func(t *testing.T) {
		t.Parallel()
		var gotStatuses []models.BattleStatus
		repo := noopBattleRepo()
		repo.listByMatchFn = func(_ context.Context, _ string, statuses []models.BattleStatus) ([]*models.Battle, error) {
			gotStatuses = statuses
			return nil, nil
		}
		svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

		_, err := svc.ListMatchBattles(ctx, "m1", "completed")
		require.NoError(t, err)
		assert.Equal(t, []models.BattleStatus{models.BattleCompleted}, gotStatuses)
	})
}

var errBoom = errors.New("boom")

func TestBattleService_RepoFailuresAreInternal(t *testing.T) {
	t.Parallel()

	repo := noopBattleRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Battle, error) { return nil, errBoom }
	svc := NewBattleService(repo, noopMatchRepo(), noopUserRepo(), &broadcasterStub{})

	_, err := svc.EndBattle(context.Background(), 1, 1)
	assertAppErrorCode(t, err, models.CodeInternal)
	assert.ErrorIs(t, err, errBoom)
}

// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"terrace/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var premierClubs = []string{
	"Arsenal", "Aston Villa", "Brentford", "Brighton", "Chelsea",
	"Crystal Palace", "Everton", "Fulham", "Liverpool", "Manchester City",
	"Manchester United", "Newcastle", "Nottingham Forest", "Tottenham",
	"West Ham", "Wolves",
}

var banterTopics = []string{
	"Who has the better midfield?",
	"Is this the worst defending of the season?",
	"Penalty or dive?",
	"Should the manager be sacked tonight?",
	"Best signing of the window?",
	"VAR got it wrong again, right?",
}

// Seeder populates the database with fake users, matches, battles and
// comment threads.
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll wipes every seeded table. Development convenience only.
func (s *Seeder) ClearAll() error {
	tables := []interface{}{
		&models.CommentLike{},
		&models.Comment{},
		&models.BattleViewer{},
		&models.BattleGift{},
		&models.BattleVote{},
		&models.BattleArgument{},
		&models.Battle{},
		&models.Match{},
		&models.User{},
	}
	for _, table := range tables {
		if err := s.db.Unscoped().Where("1 = 1").Delete(table).Error; err != nil {
			return fmt.Errorf("failed to clear table %T: %w", table, err)
		}
	}
	log.Println("Cleared all seeded tables")
	return nil
}

// SeedUsers creates n fans.
func (s *Seeder) SeedUsers(n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, &models.User{
			Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
			Role:     models.RoleFan,
		})
	}
	if err := s.db.Create(&users).Error; err != nil {
		return nil, err
	}
	log.Printf("Seeded %d users", len(users))
	return users, nil
}

// SeedMatches creates n matches between random clubs, some live and some
// finished.
func (s *Seeder) SeedMatches(n int) ([]*models.Match, error) {
	matches := make([]*models.Match, 0, n)
	for i := 0; i < n; i++ {
		home := premierClubs[s.rng.Intn(len(premierClubs))]
		away := premierClubs[s.rng.Intn(len(premierClubs))]
		for away == home {
			away = premierClubs[s.rng.Intn(len(premierClubs))]
		}

		status := "live"
		kickoff := time.Now().Add(-time.Duration(s.rng.Intn(80)) * time.Minute)
		if s.rng.Intn(3) == 0 {
			status = "finished"
			kickoff = time.Now().Add(-time.Duration(2+s.rng.Intn(72)) * time.Hour)
		}

		matches = append(matches, &models.Match{
			MatchID:     gofakeit.UUID(),
			HomeTeam:    home,
			AwayTeam:    away,
			HomeScore:   s.rng.Intn(5),
			AwayScore:   s.rng.Intn(5),
			Status:      status,
			KickoffAt:   kickoff,
			Competition: "Premier League",
		})
	}
	if err := s.db.Create(&matches).Error; err != nil {
		return nil, err
	}
	log.Printf("Seeded %d matches", len(matches))
	return matches, nil
}

// SeedBattles creates battles on each match with arguments, votes and gifts
// from the given user pool.
func (s *Seeder) SeedBattles(matches []*models.Match, users []*models.User) (int, error) {
	if len(users) < 2 {
		return 0, fmt.Errorf("need at least 2 users to seed battles")
	}

	created := 0
	for _, match := range matches {
		for i := 0; i < 1+s.rng.Intn(3); i++ {
			challenger, opponent := s.pickPair(users)

			battle := &models.Battle{
				MatchID:      match.MatchID,
				ChallengerID: challenger.ID,
				OpponentID:   opponent.ID,
				Status:       models.BattleActive,
				Topic:        banterTopics[s.rng.Intn(len(banterTopics))],
				StartTime:    time.Now().Add(-time.Duration(s.rng.Intn(40)) * time.Minute),
				EndTime:      time.Now().Add(time.Duration(10+s.rng.Intn(50)) * time.Minute),
			}
			if s.rng.Intn(4) == 0 {
				battle.Status = models.BattlePending
			}
			if err := s.db.Create(battle).Error; err != nil {
				return created, err
			}
			created++

			if battle.Status != models.BattleActive {
				continue
			}
			if err := s.seedBattleActivity(battle, challenger, opponent, users); err != nil {
				return created, err
			}
		}
	}
	log.Printf("Seeded %d battles", created)
	return created, nil
}

func (s *Seeder) seedBattleActivity(battle *models.Battle, challenger, opponent *models.User, users []*models.User) error {
	for i := 0; i < 2+s.rng.Intn(6); i++ {
		author := challenger
		if i%2 == 1 {
			author = opponent
		}
		arg := &models.BattleArgument{
			BattleID: battle.ID,
			UserID:   author.ID,
			Content:  gofakeit.HipsterSentence(8),
		}
		if err := s.db.Create(arg).Error; err != nil {
			return err
		}
	}

	voters := s.rng.Intn(len(users))
	for _, voter := range users[:voters] {
		if voter.ID == challenger.ID || voter.ID == opponent.ID {
			continue
		}
		votedFor := challenger.ID
		if s.rng.Intn(2) == 1 {
			votedFor = opponent.ID
		}
		vote := &models.BattleVote{
			BattleID:   battle.ID,
			VoterID:    voter.ID,
			VotedForID: votedFor,
			VotedAt:    time.Now(),
		}
		if err := s.db.Create(vote).Error; err != nil {
			return err
		}
	}

	giftTypes := []string{"pint", "scarf", "golden_boot", "flare"}
	for i := 0; i < s.rng.Intn(5); i++ {
		from := users[s.rng.Intn(len(users))]
		to := challenger
		if s.rng.Intn(2) == 1 {
			to = opponent
		}
		gift := &models.BattleGift{
			BattleID: battle.ID,
			FromID:   from.ID,
			ToID:     to.ID,
			GiftType: giftTypes[s.rng.Intn(len(giftTypes))],
			Amount:   1 + s.rng.Intn(10),
		}
		if err := s.db.Create(gift).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedCommentThreads creates root comments with nested replies on each match.
func (s *Seeder) SeedCommentThreads(matches []*models.Match, users []*models.User) (int, error) {
	created := 0
	for _, match := range matches {
		for i := 0; i < 2+s.rng.Intn(6); i++ {
			root := &models.Comment{
				MatchID: match.MatchID,
				UserID:  users[s.rng.Intn(len(users))].ID,
				Content: gofakeit.HipsterSentence(10),
				Kind:    models.CommentText,
			}
			if err := s.db.Create(root).Error; err != nil {
				return created, err
			}
			created++

			parent := root
			for depth := 1; depth <= s.rng.Intn(models.MaxCommentDepth+1); depth++ {
				reply := &models.Comment{
					MatchID:         match.MatchID,
					UserID:          users[s.rng.Intn(len(users))].ID,
					Content:         gofakeit.HipsterSentence(6),
					Kind:            models.CommentText,
					ParentCommentID: &parent.ID,
					Depth:           depth,
				}
				if err := s.db.Create(reply).Error; err != nil {
					return created, err
				}
				if err := s.db.Model(parent).
					UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
					return created, err
				}
				created++
				parent = reply
			}
		}
	}
	log.Printf("Seeded %d comments", created)
	return created, nil
}

func (s *Seeder) pickPair(users []*models.User) (*models.User, *models.User) {
	a := users[s.rng.Intn(len(users))]
	b := users[s.rng.Intn(len(users))]
	for b.ID == a.ID {
		b = users[s.rng.Intn(len(users))]
	}
	return a, b
}

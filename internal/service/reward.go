package service

import "terrace/internal/models"

// Badge thresholds for completed battles.
const (
	popularVoteThreshold = 100
	giftedGiftThreshold  = 50
	debaterArgumentCount = 20
	viralViewerThreshold = 1000
	pointsPerWinningVote = 10
)

// CalculateReward computes the reward for a finished battle. It is a pure
// function over the battle snapshot and its vote tally: no side effects, no
// clock, no storage. The end-battle path calls it exactly once, after the
// winner decision and before the completed battle is persisted.
func CalculateReward(b *models.Battle, tally models.VoteTally) models.Reward {
	winningVotes := tally.ChallengerVotes
	if tally.OpponentVotes > winningVotes {
		winningVotes = tally.OpponentVotes
	}

	giftSum := 0
	for _, gift := range b.Gifts {
		giftSum += gift.Amount
	}

	badges := models.Badges{}
	if len(b.Votes) >= popularVoteThreshold {
		badges = append(badges, "Popular")
	}
	if len(b.Gifts) >= giftedGiftThreshold {
		badges = append(badges, "Gifted")
	}
	if len(b.Arguments) >= debaterArgumentCount {
		badges = append(badges, "Debater")
	}
	if b.ViewerCount >= viralViewerThreshold {
		badges = append(badges, "Viral")
	}

	return models.Reward{
		Points: winningVotes*pointsPerWinningVote + giftSum,
		Badges: badges,
	}
}

// DecideWinner picks the participant with strictly more votes. An exact tie
// awards the opponent; kept for compatibility with the established outcome,
// see DESIGN.md before changing.
func DecideWinner(b *models.Battle, tally models.VoteTally) uint {
	if tally.ChallengerVotes > tally.OpponentVotes {
		return b.ChallengerID
	}
	return b.OpponentID
}

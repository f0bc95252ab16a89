package opponent

import "github.com/mcdev12/tictactoe/go/internal/game/rating"

// Thresholds on a rank's bot difficulty.
const (
	strongFrom   = 5
	moderateFrom = 3
	// moderateOdds is the percentage of moves a mid-ladder opponent plays at
	// Moderate instead of Minimal.
	moderateOdds = 70
)

// RankResolver derives the tier from the rank the human's rating falls in.
type RankResolver struct {
	calc *rating.Calculator
	rng  Rand
}

func NewRankResolver(calc *rating.Calculator, rng Rand) *RankResolver {
	if rng == nil {
		rng = DefaultRand
	}
	return &RankResolver{calc: calc, rng: rng}
}

// DifficultyFor is drawn per move, so mid-ladder opponents mix tiers within
// a single game.
func (r *RankResolver) DifficultyFor(rating int) Tier {
	d := r.calc.RankFor(rating).BotDifficulty
	switch {
	case d >= strongFrom:
		return Strong
	case d >= moderateFrom:
		if r.rng.Intn(100) < moderateOdds {
			return Moderate
		}
		return Minimal
	default:
		return Minimal
	}
}

// FixedResolver always returns the same tier.
type FixedResolver Tier

func (f FixedResolver) DifficultyFor(int) Tier { return Tier(f) }

package rating

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultBase is the rating change a multiplier of 1.0 yields.
const DefaultBase = 25

// Rank is one bracket of the rating ladder.
type Rank struct {
	Name           string  `yaml:"name" json:"name"`
	MinRating      int     `yaml:"min_rating" json:"min_rating"`
	WinMultiplier  float64 `yaml:"win_multiplier" json:"win_multiplier"`
	LoseMultiplier float64 `yaml:"lose_multiplier" json:"lose_multiplier"`
	BotDifficulty  int     `yaml:"bot_difficulty" json:"bot_difficulty"`
}

// DefaultRanks is the reference ladder, ascending by MinRating.
var DefaultRanks = []Rank{
	{Name: "Новичок", MinRating: 0, WinMultiplier: 1.5, LoseMultiplier: 0.5, BotDifficulty: 1},
	{Name: "Любитель", MinRating: 100, WinMultiplier: 1.3, LoseMultiplier: 0.7, BotDifficulty: 2},
	{Name: "Игрок", MinRating: 300, WinMultiplier: 1.1, LoseMultiplier: 0.9, BotDifficulty: 3},
	{Name: "Опытный", MinRating: 600, WinMultiplier: 1.0, LoseMultiplier: 1.0, BotDifficulty: 4},
	{Name: "Эксперт", MinRating: 1000, WinMultiplier: 0.9, LoseMultiplier: 1.1, BotDifficulty: 5},
	{Name: "Мастер", MinRating: 1500, WinMultiplier: 0.8, LoseMultiplier: 1.2, BotDifficulty: 6},
	{Name: "Гроссмейстер", MinRating: 2100, WinMultiplier: 0.7, LoseMultiplier: 1.3, BotDifficulty: 7},
}

// Policy holds the fixed multipliers applied instead of the rank table.
type Policy struct {
	BeatSynthetic   float64 `yaml:"beat_synthetic"`
	LoseToSynthetic float64 `yaml:"lose_to_synthetic"`
	TimeoutLoss     float64 `yaml:"timeout_loss"`
	Resignation     float64 `yaml:"resignation"`
}

// DefaultPolicy returns the reference policy constants.
func DefaultPolicy() Policy {
	return Policy{
		BeatSynthetic:   0.7,
		LoseToSynthetic: 0.5,
		TimeoutLoss:     1.0,
		Resignation:     0.8,
	}
}

// WithDefaults returns p with every unset multiplier taken from
// DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	return Policy{
		BeatSynthetic:   lo.CoalesceOrEmpty(p.BeatSynthetic, def.BeatSynthetic),
		LoseToSynthetic: lo.CoalesceOrEmpty(p.LoseToSynthetic, def.LoseToSynthetic),
		TimeoutLoss:     lo.CoalesceOrEmpty(p.TimeoutLoss, def.TimeoutLoss),
		Resignation:     lo.CoalesceOrEmpty(p.Resignation, def.Resignation),
	}
}

// Config is the YAML shape of the rating section.
type Config struct {
	Base   int    `yaml:"base"`
	Ranks  []Rank `yaml:"ranks"`
	Policy Policy `yaml:"policy"`
}

// Calculator maps ratings to ranks and outcomes to deltas. It is immutable
// after construction and safe for concurrent use.
type Calculator struct {
	base   int
	ranks  []Rank
	policy Policy
}

// NewCalculator validates cfg and fills missing parts with defaults.
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.Base == 0 {
		cfg.Base = DefaultBase
	}
	if cfg.Base < 0 {
		return nil, fmt.Errorf("base must be positive, got %d", cfg.Base)
	}
	ranks := cfg.Ranks
	if len(ranks) == 0 {
		ranks = DefaultRanks
	}
	ranks = append([]Rank(nil), ranks...)
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].MinRating < ranks[j].MinRating })
	for i, r := range ranks {
		if r.Name == "" {
			return nil, fmt.Errorf("rank %d has no name", i)
		}
		if r.WinMultiplier < 0 || r.LoseMultiplier < 0 {
			return nil, fmt.Errorf("rank %q has a negative multiplier", r.Name)
		}
		if i > 0 && ranks[i-1].MinRating == r.MinRating {
			return nil, fmt.Errorf("ranks %q and %q share min_rating %d", ranks[i-1].Name, r.Name, r.MinRating)
		}
	}
	policy := cfg.Policy.WithDefaults()
	if policy.BeatSynthetic < 0 || policy.LoseToSynthetic < 0 || policy.TimeoutLoss < 0 || policy.Resignation < 0 {
		return nil, fmt.Errorf("policy multipliers must not be negative: %+v", policy)
	}
	return &Calculator{base: cfg.Base, ranks: ranks, policy: policy}, nil
}

// NewDefaultCalculator returns the reference calculator.
func NewDefaultCalculator() *Calculator {
	c, err := NewCalculator(Config{})
	if err != nil {
		panic(err)
	}
	return c
}

// LoadConfig reads a rating config from a YAML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read rating config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse rating config: %w", err)
	}
	return cfg, nil
}

func (c *Calculator) Base() int      { return c.base }
func (c *Calculator) Policy() Policy { return c.policy }

// Ranks returns a copy of the ladder.
func (c *Calculator) Ranks() []Rank {
	return append([]Rank(nil), c.ranks...)
}

// RankFor returns the highest rank whose MinRating does not exceed rating.
// Ratings below the lowest threshold map to the lowest rank.
func (c *Calculator) RankFor(rating int) Rank {
	rank := c.ranks[0]
	for _, r := range c.ranks {
		if rating < r.MinRating {
			break
		}
		rank = r
	}
	return rank
}

// Change returns the magnitudes by which the winner gains and the loser
// loses. The two are computed independently from each side's rank.
func (c *Calculator) Change(winnerRating, loserRating int, draw bool) (winnerDelta, loserDelta int) {
	if draw {
		return 0, 0
	}
	winnerDelta = c.scaled(c.RankFor(winnerRating).WinMultiplier)
	loserDelta = c.scaled(c.RankFor(loserRating).LoseMultiplier)
	return winnerDelta, loserDelta
}

// SyntheticWinReward is the gain for a human beating the synthetic opponent.
func (c *Calculator) SyntheticWinReward() int { return c.scaled(c.policy.BeatSynthetic) }

// SyntheticLossPenalty is the loss for a human beaten by the synthetic opponent.
func (c *Calculator) SyntheticLossPenalty() int { return c.scaled(c.policy.LoseToSynthetic) }

// TimeoutPenalty is the loss for a human whose move clock ran out.
func (c *Calculator) TimeoutPenalty() int { return c.scaled(c.policy.TimeoutLoss) }

// ResignationPenalty is the loss for a human who resigned.
func (c *Calculator) ResignationPenalty() int { return c.scaled(c.policy.Resignation) }

func (c *Calculator) scaled(multiplier float64) int {
	return int(math.Floor(float64(c.base) * multiplier))
}

package opponent

import (
	"errors"

	"github.com/mcdev12/tictactoe/go/internal/game/board"
	"lukechampine.com/frand"
)

var ErrNoLegalMove = errors.New("no legal move")

// Tier selects how hard the synthetic opponent plays.
type Tier uint8

const (
	Minimal Tier = iota
	Moderate
	Strong
)

func (t Tier) String() string {
	switch t {
	case Moderate:
		return "moderate"
	case Strong:
		return "strong"
	default:
		return "minimal"
	}
}

// Rand is the randomness the policy consumes.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type frandSource struct{}

func (frandSource) Intn(n int) int                     { return frand.Intn(n) }
func (frandSource) Shuffle(n int, swap func(i, j int)) { frand.Shuffle(n, swap) }

// DefaultRand draws from frand's process-wide generator.
var DefaultRand Rand = frandSource{}

var (
	center  = board.Cell{Row: 1, Col: 1}
	corners = [4]board.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 2}, {Row: 2, Col: 0}, {Row: 2, Col: 2}}
)

// Policy picks moves for the synthetic participant. It looks one ply ahead
// at most.
type Policy struct {
	rng Rand
}

// NewPolicy returns a policy drawing from rng, or DefaultRand when nil.
func NewPolicy(rng Rand) *Policy {
	if rng == nil {
		rng = DefaultRand
	}
	return &Policy{rng: rng}
}

// Choose returns an empty cell for self to play at the given tier.
func (p *Policy) Choose(b board.Board, self board.Role, tier Tier) (board.Cell, error) {
	free := b.EmptyCells()
	if len(free) == 0 {
		return board.Cell{}, ErrNoLegalMove
	}
	switch tier {
	case Strong:
		return p.strong(b, self, free), nil
	case Moderate:
		return p.moderate(b, free), nil
	default:
		return p.minimal(free), nil
	}
}

func (p *Policy) minimal(free []board.Cell) board.Cell {
	return free[p.rng.Intn(len(free))]
}

func (p *Policy) moderate(b board.Board, free []board.Cell) board.Cell {
	if b.At(center.Row, center.Col) == board.Empty {
		return center
	}
	order := corners
	p.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for _, c := range order {
		if b.At(c.Row, c.Col) == board.Empty {
			return c
		}
	}
	return p.minimal(free)
}

func (p *Policy) strong(b board.Board, self board.Role, free []board.Cell) board.Cell {
	if c, ok := completesLine(b, self, free); ok {
		return c
	}
	if c, ok := completesLine(b, self.Other(), free); ok {
		return c
	}
	return p.moderate(b, free)
}

// completesLine returns the first free cell that would win the game for role.
func completesLine(b board.Board, role board.Role, free []board.Cell) (board.Cell, bool) {
	for _, c := range free {
		scratch := b.Clone()
		if err := scratch.Apply(c.Row, c.Col, role); err != nil {
			continue
		}
		if res := scratch.Result(); res.Kind == board.Win && res.Winner == role {
			return c, true
		}
	}
	return board.Cell{}, false
}

package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Size is the side length of the grid.
const Size = 3

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrCellOccupied       = errors.New("cell occupied")
)

// Role is the side a mark belongs to. The zero value marks an empty cell.
type Role uint8

const (
	Empty Role = iota
	First
	Second
)

// Other returns the opposing role.
func (r Role) Other() Role {
	switch r {
	case First:
		return Second
	case Second:
		return First
	default:
		return Empty
	}
}

// Symbol renders the role the way boards are printed: X moves first, O second.
func (r Role) Symbol() string {
	switch r {
	case First:
		return "X"
	case Second:
		return "O"
	default:
		return "."
	}
}

func (r Role) String() string {
	switch r {
	case First:
		return "first"
	case Second:
		return "second"
	default:
		return "empty"
	}
}

// Cell addresses one square of the grid.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether the cell lies on the grid.
func (c Cell) Valid() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// ResultKind classifies the state of a board.
type ResultKind uint8

const (
	Undecided ResultKind = iota
	Win
	Draw
)

func (k ResultKind) String() string {
	switch k {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "undecided"
	}
}

// Result is the terminal state of a board. Winner is set only for Win.
type Result struct {
	Kind   ResultKind
	Winner Role
}

func (r Result) Terminal() bool { return r.Kind != Undecided }

// lines lists every row, column and diagonal.
var lines = [8][3]Cell{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Board is a 3x3 grid. It validates occupancy only; whose turn it is belongs
// to the caller. Board is a value type, so assignment copies the grid.
type Board struct {
	cells [Size][Size]Role
}

// At returns the role occupying the cell, or Empty.
func (b *Board) At(row, col int) Role {
	if !(Cell{row, col}).Valid() {
		return Empty
	}
	return b.cells[row][col]
}

// Apply places a mark for role at (row, col).
func (b *Board) Apply(row, col int, role Role) error {
	if !(Cell{row, col}).Valid() {
		return fmt.Errorf("%w: (%d,%d)", ErrInvalidCoordinates, row, col)
	}
	if role != First && role != Second {
		return fmt.Errorf("cannot place role %s", role)
	}
	if b.cells[row][col] != Empty {
		return fmt.Errorf("%w: (%d,%d)", ErrCellOccupied, row, col)
	}
	b.cells[row][col] = role
	return nil
}

// Result scans rows, columns and diagonals for three identical marks. A full
// board without a line is a draw.
func (b *Board) Result() Result {
	for _, line := range lines {
		r := b.cells[line[0].Row][line[0].Col]
		if r == Empty {
			continue
		}
		if b.cells[line[1].Row][line[1].Col] == r && b.cells[line[2].Row][line[2].Col] == r {
			return Result{Kind: Win, Winner: r}
		}
	}
	if len(b.EmptyCells()) == 0 {
		return Result{Kind: Draw}
	}
	return Result{Kind: Undecided}
}

// EmptyCells lists free cells in row-major order.
func (b *Board) EmptyCells() []Cell {
	free := make([]Cell, 0, Size*Size)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if b.cells[row][col] == Empty {
				free = append(free, Cell{Row: row, Col: col})
			}
		}
	}
	return free
}

// Count returns the number of marks placed by role.
func (b *Board) Count(role Role) int {
	n := 0
	for row := range b.cells {
		n += lo.Count(b.cells[row][:], role)
	}
	return n
}

// Clone returns an independent copy used for lookahead.
func (b *Board) Clone() Board {
	return *b
}

// Rows renders the grid as three strings of X, O and '.'.
func (b *Board) Rows() []string {
	rows := make([]string, Size)
	for row := 0; row < Size; row++ {
		var sb strings.Builder
		for col := 0; col < Size; col++ {
			sb.WriteString(b.cells[row][col].Symbol())
		}
		rows[row] = sb.String()
	}
	return rows
}

func (b *Board) String() string {
	return strings.Join(b.Rows(), "\n")
}

// FromRows builds a board from rows like "XO.", accepting ' ' or '.' for
// empty cells. It does not check turn alternation.
func FromRows(rows ...string) (Board, error) {
	var b Board
	if len(rows) != Size {
		return b, fmt.Errorf("expected %d rows, got %d", Size, len(rows))
	}
	for row, line := range rows {
		if len(line) != Size {
			return b, fmt.Errorf("row %d: expected %d cells, got %d", row, Size, len(line))
		}
		for col, ch := range line {
			switch ch {
			case 'X', 'x':
				b.cells[row][col] = First
			case 'O', 'o':
				b.cells[row][col] = Second
			case '.', ' ', '_':
			default:
				return b, fmt.Errorf("row %d: unexpected cell %q", row, ch)
			}
		}
	}
	return b, nil
}

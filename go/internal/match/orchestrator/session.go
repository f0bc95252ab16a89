package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tictactoe/go/internal/game/board"
	"github.com/mcdev12/tictactoe/go/internal/models"
)

// State is the lifecycle stage of a session.
type State uint8

const (
	StateAwaitingMove State = iota
	StateSettling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingMove:
		return "awaiting_move"
	case StateSettling:
		return "settling"
	default:
		return "closed"
	}
}

// Reason records how a session reached its outcome.
type Reason uint8

const (
	ReasonBoard Reason = iota
	ReasonTimeout
	ReasonResign
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonResign:
		return "resign"
	default:
		return "board"
	}
}

// Outcome is the result of a session. Winner is set only when Kind is Win.
type Outcome struct {
	Kind   board.ResultKind
	Winner models.Participant
	Reason Reason
}

// seat is a participant as seen at session creation.
type seat struct {
	participant models.Participant
	rating      int
	name        string
}

// Session is one live match. Every field is guarded by mu; methods with the
// Locked suffix on the orchestrator expect mu to be held.
type Session struct {
	mu sync.Mutex

	id         string
	first      seat
	second     seat
	rated      bool
	board      board.Board
	turn       models.Participant
	state      State
	outcome    Outcome
	createdAt  time.Time
	lastMoveAt time.Time
	moveSeq    uint64
	moves      []models.MoveRecord
	// handles maps a human id to the outbound message handle returned when
	// SessionStarted was delivered.
	handles map[string]string
}

func newSession(first, second seat, rated bool, now time.Time) *Session {
	return &Session{
		id:         uuid.NewString(),
		first:      first,
		second:     second,
		rated:      rated,
		turn:       first.participant,
		state:      StateAwaitingMove,
		createdAt:  now,
		lastMoveAt: now,
		handles:    make(map[string]string),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) vsSynthetic() bool {
	return s.first.participant.IsSynthetic() || s.second.participant.IsSynthetic()
}

func (s *Session) seats() [2]seat { return [2]seat{s.first, s.second} }

// humans returns the human seats in seating order.
func (s *Session) humans() []seat {
	out := make([]seat, 0, 2)
	for _, st := range s.seats() {
		if st.participant.IsHuman() {
			out = append(out, st)
		}
	}
	return out
}

func (s *Session) roleOf(p models.Participant) board.Role {
	switch p {
	case s.first.participant:
		return board.First
	case s.second.participant:
		return board.Second
	default:
		return board.Empty
	}
}

func (s *Session) seatOf(role board.Role) seat {
	if role == board.Second {
		return s.second
	}
	return s.first
}

func (s *Session) other(p models.Participant) seat {
	if p == s.first.participant {
		return s.second
	}
	return s.first
}

// place applies a move for p. The caller has already checked state and turn.
func (s *Session) place(p models.Participant, cell board.Cell, now time.Time) (board.Result, error) {
	role := s.roleOf(p)
	if err := s.board.Apply(cell.Row, cell.Col, role); err != nil {
		return board.Result{}, err
	}
	s.moveSeq++
	s.lastMoveAt = now
	s.moves = append(s.moves, models.MoveRecord{
		Seq:  int(s.moveSeq),
		Row:  cell.Row,
		Col:  cell.Col,
		Mark: role.Symbol(),
		At:   now,
	})
	res := s.board.Result()
	if !res.Terminal() {
		s.turn = s.other(p).participant
	}
	return res, nil
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID          string             `json:"id"`
	First       models.Participant `json:"-"`
	Second      models.Participant `json:"-"`
	FirstName   string             `json:"first_name"`
	SecondName  string             `json:"second_name"`
	Rated       bool               `json:"rated"`
	VsSynthetic bool               `json:"vs_synthetic"`
	Board       []string           `json:"board"`
	Turn        models.Participant `json:"-"`
	State       State              `json:"-"`
	MoveCount   int                `json:"move_count"`
	CreatedAt   time.Time          `json:"created_at"`
	LastMoveAt  time.Time          `json:"last_move_at"`
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          s.id,
		First:       s.first.participant,
		Second:      s.second.participant,
		FirstName:   s.first.name,
		SecondName:  s.second.name,
		Rated:       s.rated,
		VsSynthetic: s.vsSynthetic(),
		Board:       s.board.Rows(),
		Turn:        s.turn,
		State:       s.state,
		MoveCount:   len(s.moves),
		CreatedAt:   s.createdAt,
		LastMoveAt:  s.lastMoveAt,
	}
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

package service

import (
	"time"

	"github.com/mcdev12/tictactoe/go/internal/game/board"
	"github.com/mcdev12/tictactoe/go/internal/invites"
	"github.com/mcdev12/tictactoe/go/internal/match/orchestrator"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/mcdev12/tictactoe/go/internal/profiles"
)

type Empty struct{}

type RequestMatchResponse struct {
	Queued bool `json:"queued"`
}

type SubmitMoveRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// SessionView is the caller's view of its live session.
type SessionView struct {
	ID          string    `json:"id"`
	Opponent    string    `json:"opponent"`
	Mark        string    `json:"mark"`
	YourTurn    bool      `json:"your_turn"`
	Rated       bool      `json:"rated"`
	VsSynthetic bool      `json:"vs_synthetic"`
	Board       []string  `json:"board"`
	MoveCount   int       `json:"move_count"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	LastMoveAt  time.Time `json:"last_move_at"`
}

type SessionResponse struct {
	InSession bool         `json:"in_session"`
	Queued    bool         `json:"queued"`
	Session   *SessionView `json:"session,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
}

type ProfileRequest struct {
	// ID defaults to the caller.
	ID string `json:"id"`
}

type ProfileResponse struct {
	Profile *profiles.View `json:"profile"`
}

type TopResponse struct {
	Profiles []*models.Profile `json:"profiles"`
}

type InviteResponse struct {
	Invite *invites.Invite `json:"invite"`
}

type RedeemInviteRequest struct {
	Code string `json:"code"`
}

type HistoryRequest struct {
	Limit int `json:"limit"`
}

type HistoryResponse struct {
	Matches []models.MatchRecord `json:"matches"`
}

func sessionView(snap orchestrator.Snapshot, caller models.Participant) *SessionView {
	view := &SessionView{
		ID:          snap.ID,
		Rated:       snap.Rated,
		VsSynthetic: snap.VsSynthetic,
		Board:       snap.Board,
		MoveCount:   snap.MoveCount,
		State:       snap.State.String(),
		YourTurn:    snap.Turn == caller,
		CreatedAt:   snap.CreatedAt,
		LastMoveAt:  snap.LastMoveAt,
	}
	if snap.First == caller {
		view.Mark, view.Opponent = board.First.Symbol(), snap.SecondName
	} else {
		view.Mark, view.Opponent = board.Second.Symbol(), snap.FirstName
	}
	return view
}

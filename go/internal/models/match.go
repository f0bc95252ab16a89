package models

import (
	"errors"
	"time"
)

// ErrProfileNotFound is returned by profile stores when no profile exists.
var ErrProfileNotFound = errors.New("profile not found")

// MoveRecord is one accepted move of a finished match.
type MoveRecord struct {
	Seq  int       `json:"seq"`
	Row  int       `json:"row"`
	Col  int       `json:"col"`
	Mark string    `json:"mark"`
	At   time.Time `json:"at"`
}

// MatchRecord is the history row written once a session closes. Player ids
// are empty for the synthetic opponent.
type MatchRecord struct {
	SessionID   string
	FirstID     string
	SecondID    string
	VsSynthetic bool
	Rated       bool
	Board       []string
	Moves       []MoveRecord
	Outcome     string
	Reason      string
	WinnerID    string
	FirstDelta  int
	SecondDelta int
	StartedAt   time.Time
	EndedAt     time.Time
}

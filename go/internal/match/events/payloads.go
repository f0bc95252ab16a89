package events

import "time"

// Payloads are addressed to a single recipient; "you" fields are from that
// recipient's point of view.

// Opponent describes the other side of a session.
type Opponent struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Rating    int    `json:"rating,omitempty"`
	Synthetic bool   `json:"synthetic"`
}

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	Opponent  Opponent  `json:"opponent"`
	Mark      string    `json:"mark"`
	YourTurn  bool      `json:"your_turn"`
	Rated     bool      `json:"rated"`
	Board     []string  `json:"board"`
	StartedAt time.Time `json:"started_at"`
	TimeoutAt time.Time `json:"timeout_at"`
}

// Move is one accepted placement.
type Move struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Mark string `json:"mark"`
}

// BoardUpdatedPayload is the payload for a BoardUpdated event
type BoardUpdatedPayload struct {
	Board      []string  `json:"board"`
	LastMove   Move      `json:"last_move"`
	MoveNumber int       `json:"move_number"`
	YourTurn   bool      `json:"your_turn"`
	TimeoutAt  time.Time `json:"timeout_at"`
}

// Outcome values from the recipient's point of view.
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeDraw = "draw"
)

// Reasons a session ended.
const (
	ReasonLine    = "line"
	ReasonDraw    = "draw"
	ReasonTimeout = "timeout"
	ReasonResign  = "resign"
)

// SessionEndedPayload is the payload for a SessionEnded event. RatingDelta is
// signed and zero for unrated sessions or when the recipient's profile could
// not be updated.
type SessionEndedPayload struct {
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
	Board       []string  `json:"board"`
	Rated       bool      `json:"rated"`
	RatingDelta int       `json:"rating_delta"`
	NewRating   int       `json:"new_rating,omitempty"`
	EndedAt     time.Time `json:"ended_at"`
}

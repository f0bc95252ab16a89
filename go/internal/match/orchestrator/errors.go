package orchestrator

import (
	"errors"
	"fmt"

	"github.com/mcdev12/tictactoe/go/internal/game/board"
)

// Kind classifies a rejected lifecycle operation.
type Kind string

const (
	KindAlreadyQueued      Kind = "already_queued"
	KindAlreadyInSession   Kind = "already_in_session"
	KindSessionNotFound    Kind = "session_not_found"
	KindNotYourTurn        Kind = "not_your_turn"
	KindCellOccupied       Kind = "cell_occupied"
	KindInvalidCoordinates Kind = "invalid_coordinates"
	KindProfileUnavailable Kind = "profile_unavailable"
	KindInvalidParticipant Kind = "invalid_participant"
)

// Rejection is returned by every lifecycle operation that refused a request.
// The engine's state is unchanged when a Rejection is returned.
type Rejection struct {
	Kind   Kind
	Detail string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Is matches any Rejection of the same Kind, so errors.Is works against the
// sentinels below.
func (r *Rejection) Is(target error) bool {
	var t *Rejection
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == r.Kind
}

var (
	ErrAlreadyQueued      = &Rejection{Kind: KindAlreadyQueued}
	ErrAlreadyInSession   = &Rejection{Kind: KindAlreadyInSession}
	ErrSessionNotFound    = &Rejection{Kind: KindSessionNotFound}
	ErrNotYourTurn        = &Rejection{Kind: KindNotYourTurn}
	ErrCellOccupied       = &Rejection{Kind: KindCellOccupied}
	ErrInvalidCoordinates = &Rejection{Kind: KindInvalidCoordinates}
	ErrProfileUnavailable = &Rejection{Kind: KindProfileUnavailable}
	ErrInvalidParticipant = &Rejection{Kind: KindInvalidParticipant}
)

func reject(kind Kind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the rejection kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind, true
	}
	return "", false
}

// moveRejection maps board errors onto rejection kinds.
func moveRejection(err error) error {
	switch {
	case errors.Is(err, board.ErrCellOccupied):
		return &Rejection{Kind: KindCellOccupied, Detail: err.Error(), Err: err}
	case errors.Is(err, board.ErrInvalidCoordinates):
		return &Rejection{Kind: KindInvalidCoordinates, Detail: err.Error(), Err: err}
	default:
		return fmt.Errorf("failed to apply move: %w", err)
	}
}

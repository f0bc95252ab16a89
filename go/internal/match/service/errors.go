package service

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/mcdev12/tictactoe/go/internal/invites"
	"github.com/mcdev12/tictactoe/go/internal/match/orchestrator"
	"github.com/mcdev12/tictactoe/go/internal/profiles"
)

// RejectionKindHeader carries the orchestrator rejection kind on errors.
const RejectionKindHeader = "X-Rejection-Kind"

var (
	errMissingParticipant = errors.New(ParticipantHeader + " header is required")
	errHistoryDisabled    = errors.New("match history is not configured")
)

var kindCodes = map[orchestrator.Kind]connect.Code{
	orchestrator.KindAlreadyQueued:      connect.CodeAlreadyExists,
	orchestrator.KindAlreadyInSession:   connect.CodeAlreadyExists,
	orchestrator.KindSessionNotFound:    connect.CodeNotFound,
	orchestrator.KindNotYourTurn:        connect.CodeFailedPrecondition,
	orchestrator.KindCellOccupied:       connect.CodeFailedPrecondition,
	orchestrator.KindInvalidCoordinates: connect.CodeInvalidArgument,
	orchestrator.KindProfileUnavailable: connect.CodeFailedPrecondition,
	orchestrator.KindInvalidParticipant: connect.CodeInvalidArgument,
}

func toConnectError(err error) error {
	if kind, ok := orchestrator.KindOf(err); ok {
		code, known := kindCodes[kind]
		if !known {
			code = connect.CodeInternal
		}
		cerr := connect.NewError(code, err)
		cerr.Meta().Set(RejectionKindHeader, string(kind))
		return cerr
	}

	switch {
	case errors.Is(err, profiles.ErrNotFound), errors.Is(err, invites.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, invites.ErrUsed), errors.Is(err, invites.ErrExpired):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, invites.ErrSelfInvite), errors.Is(err, invites.ErrNotHuman):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

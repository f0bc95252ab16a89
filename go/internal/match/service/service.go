package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/mcdev12/tictactoe/go/internal/invites"
	"github.com/mcdev12/tictactoe/go/internal/match/orchestrator"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/mcdev12/tictactoe/go/internal/profiles"
)

const (
	ServiceName = "tictactoe.match.v1.MatchService"

	// ParticipantHeader carries the caller's platform id, set by the fronting
	// platform.
	ParticipantHeader = "X-Participant-Id"

	// HistoryLimit caps History responses.
	HistoryLimit = 50
)

// Procedure paths
const (
	RequestMatchProcedure       = "/" + ServiceName + "/RequestMatch"
	CancelMatchRequestProcedure = "/" + ServiceName + "/CancelMatchRequest"
	SubmitMoveProcedure         = "/" + ServiceName + "/SubmitMove"
	ResignProcedure             = "/" + ServiceName + "/Resign"
	SessionProcedure            = "/" + ServiceName + "/Session"
	RegisterProcedure           = "/" + ServiceName + "/Register"
	ProfileProcedure            = "/" + ServiceName + "/Profile"
	TopProcedure                = "/" + ServiceName + "/Top"
	CreateInviteProcedure       = "/" + ServiceName + "/CreateInvite"
	RedeemInviteProcedure       = "/" + ServiceName + "/RedeemInvite"
	HistoryProcedure            = "/" + ServiceName + "/History"
)

// MatchEngine defines what the service layer needs from the orchestrator
type MatchEngine interface {
	RequestMatch(ctx context.Context, p models.Participant) error
	CancelMatchRequest(ctx context.Context, p models.Participant) error
	SubmitMove(ctx context.Context, p models.Participant, row, col int) error
	Resign(ctx context.Context, p models.Participant) error
	SessionOf(p models.Participant) (orchestrator.Snapshot, bool)
	IsQueued(p models.Participant) bool
}

// ProfilesApp defines what the service layer needs from the profiles app
type ProfilesApp interface {
	Ensure(ctx context.Context, id, username string) (*models.Profile, error)
	View(ctx context.Context, id string) (*profiles.View, error)
	Top(ctx context.Context) ([]*models.Profile, error)
}

// InvitesApp defines what the service layer needs from the invites app
type InvitesApp interface {
	Create(ctx context.Context, inviter models.Participant) (*invites.Invite, error)
	Redeem(ctx context.Context, code string, redeemer models.Participant) (*invites.Invite, error)
}

// HistoryReader lists finished matches.
type HistoryReader interface {
	ListForParticipant(ctx context.Context, id string, limit int) ([]models.MatchRecord, error)
}

// Service implements the match lifecycle API over the connect protocol
type Service struct {
	engine   MatchEngine
	profiles ProfilesApp
	invites  InvitesApp
	history  HistoryReader
}

// NewService creates a match service. history may be nil.
func NewService(engine MatchEngine, profilesApp ProfilesApp, invitesApp InvitesApp, history HistoryReader) *Service {
	return &Service{
		engine:   engine,
		profiles: profilesApp,
		invites:  invitesApp,
		history:  history,
	}
}

// Handler returns the path prefix and handler serving every procedure.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(RequestMatchProcedure, connect.NewUnaryHandler(RequestMatchProcedure, s.RequestMatch, opts...))
	mux.Handle(CancelMatchRequestProcedure, connect.NewUnaryHandler(CancelMatchRequestProcedure, s.CancelMatchRequest, opts...))
	mux.Handle(SubmitMoveProcedure, connect.NewUnaryHandler(SubmitMoveProcedure, s.SubmitMove, opts...))
	mux.Handle(ResignProcedure, connect.NewUnaryHandler(ResignProcedure, s.Resign, opts...))
	mux.Handle(SessionProcedure, connect.NewUnaryHandler(SessionProcedure, s.Session, opts...))
	mux.Handle(RegisterProcedure, connect.NewUnaryHandler(RegisterProcedure, s.Register, opts...))
	mux.Handle(ProfileProcedure, connect.NewUnaryHandler(ProfileProcedure, s.Profile, opts...))
	mux.Handle(TopProcedure, connect.NewUnaryHandler(TopProcedure, s.Top, opts...))
	mux.Handle(CreateInviteProcedure, connect.NewUnaryHandler(CreateInviteProcedure, s.CreateInvite, opts...))
	mux.Handle(RedeemInviteProcedure, connect.NewUnaryHandler(RedeemInviteProcedure, s.RedeemInvite, opts...))
	mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, s.History, opts...))
	return "/" + ServiceName + "/", mux
}

func participantFrom(h http.Header) (models.Participant, error) {
	id := strings.TrimSpace(h.Get(ParticipantHeader))
	if id == "" {
		return models.Participant{}, connect.NewError(connect.CodeUnauthenticated, errMissingParticipant)
	}
	return models.Human(id), nil
}

// RequestMatch queues the caller for matchmaking
func (s *Service) RequestMatch(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[RequestMatchResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	if err := s.engine.RequestMatch(ctx, p); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RequestMatchResponse{Queued: true}), nil
}

// CancelMatchRequest withdraws the caller from the queue
func (s *Service) CancelMatchRequest(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	if err := s.engine.CancelMatchRequest(ctx, p); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// SubmitMove places the caller's mark
func (s *Service) SubmitMove(ctx context.Context, req *connect.Request[SubmitMoveRequest]) (*connect.Response[SessionResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	if err := s.engine.SubmitMove(ctx, p, req.Msg.Row, req.Msg.Col); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.sessionResponse(p)), nil
}

// Resign forfeits the caller's live session
func (s *Service) Resign(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	if err := s.engine.Resign(ctx, p); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// Session reports the caller's queue and session state
func (s *Service) Session(_ context.Context, req *connect.Request[Empty]) (*connect.Response[SessionResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s.sessionResponse(p)), nil
}

func (s *Service) sessionResponse(p models.Participant) *SessionResponse {
	resp := &SessionResponse{Queued: s.engine.IsQueued(p)}
	if snap, ok := s.engine.SessionOf(p); ok {
		resp.InSession = true
		resp.Session = sessionView(snap, p)
	}
	return resp
}

// Register creates the caller's profile or refreshes its username
func (s *Service) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[ProfileResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.Ensure(ctx, p.ID(), req.Msg.Username); err != nil {
		return nil, toConnectError(err)
	}
	view, err := s.profiles.View(ctx, p.ID())
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ProfileResponse{Profile: view}), nil
}

// Profile returns a profile with rank and leaderboard position
func (s *Service) Profile(ctx context.Context, req *connect.Request[ProfileRequest]) (*connect.Response[ProfileResponse], error) {
	id := strings.TrimSpace(req.Msg.ID)
	if id == "" {
		p, err := participantFrom(req.Header())
		if err != nil {
			return nil, err
		}
		id = p.ID()
	}
	view, err := s.profiles.View(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ProfileResponse{Profile: view}), nil
}

// Top returns the leaderboard
func (s *Service) Top(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[TopResponse], error) {
	top, err := s.profiles.Top(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TopResponse{Profiles: top}), nil
}

// CreateInvite issues a direct challenge code for the caller
func (s *Service) CreateInvite(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[InviteResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	inv, err := s.invites.Create(ctx, p)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&InviteResponse{Invite: inv}), nil
}

// RedeemInvite accepts a challenge code and starts the match
func (s *Service) RedeemInvite(ctx context.Context, req *connect.Request[RedeemInviteRequest]) (*connect.Response[InviteResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	inv, err := s.invites.Redeem(ctx, req.Msg.Code, p)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&InviteResponse{Invite: inv}), nil
}

// History lists the caller's finished matches
func (s *Service) History(ctx context.Context, req *connect.Request[HistoryRequest]) (*connect.Response[HistoryResponse], error) {
	p, err := participantFrom(req.Header())
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errHistoryDisabled)
	}
	limit := req.Msg.Limit
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	matches, err := s.history.ListForParticipant(ctx, p.ID(), limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&HistoryResponse{Matches: matches}), nil
}

package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/tictactoe/go/internal/game/board"
	"github.com/mcdev12/tictactoe/go/internal/match/events"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

// startLocked arms the first watchdog, announces the session and lets the
// synthetic opponent open if it moves first.
func (o *Orchestrator) startLocked(ctx context.Context, s *Session) {
	o.armWatchdogLocked(s)
	timeoutAt := s.lastMoveAt.Add(o.cfg.MoveTimeout)

	for _, h := range s.humans() {
		opp := s.other(h.participant)
		payload := events.SessionStartedPayload{
			Opponent: events.Opponent{
				ID:        opp.participant.ID(),
				Name:      opp.name,
				Rating:    opp.rating,
				Synthetic: opp.participant.IsSynthetic(),
			},
			Mark:      s.roleOf(h.participant).Symbol(),
			YourTurn:  s.turn == h.participant,
			Rated:     s.rated,
			Board:     s.board.Rows(),
			StartedAt: s.createdAt,
			TimeoutAt: timeoutAt,
		}
		handle := o.notifyLocked(ctx, s, h.participant, events.EventTypeSessionStarted, payload)
		if handle != "" {
			s.handles[h.participant.ID()] = handle
		}
	}
	o.syntheticTurnLocked(ctx, s)
}

func (o *Orchestrator) broadcastBoardLocked(ctx context.Context, s *Session, last board.Cell) {
	rows := s.board.Rows()
	lastMark := s.board.At(last.Row, last.Col).Symbol()
	timeoutAt := s.lastMoveAt.Add(o.cfg.MoveTimeout)
	for _, h := range s.humans() {
		o.notifyLocked(ctx, s, h.participant, events.EventTypeBoardUpdated, events.BoardUpdatedPayload{
			Board:      rows,
			LastMove:   events.Move{Row: last.Row, Col: last.Col, Mark: lastMark},
			MoveNumber: len(s.moves),
			YourTurn:   s.turn == h.participant,
			TimeoutAt:  timeoutAt,
		})
	}
}

// notifyLocked delivers one event and returns the transport handle. Delivery
// failures are logged and never affect session state.
func (o *Orchestrator) notifyLocked(ctx context.Context, s *Session, to models.Participant, eventType events.EventType, payload any) string {
	if o.notifier == nil {
		return ""
	}
	ev, err := events.New(eventType, s.id, o.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id).Msg("failed to build event")
		return ""
	}
	ev.Handle = s.handles[to.ID()]
	handle, err := o.notifier.Notify(ctx, to, ev)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", s.id).
			Str("participant", to.String()).
			Str("event_type", string(eventType)).
			Msg("failed to notify participant")
		return ""
	}
	return handle
}

// settlement is the per-human result of settling a session.
type settlement struct {
	profile *models.Profile
	delta   int
	saved   bool
}

// settleLocked runs settlement, closes the session, removes it from the
// registry and then notifies both humans.
func (o *Orchestrator) settleLocked(ctx context.Context, s *Session, outcome Outcome) {
	s.state = StateSettling
	s.outcome = outcome
	o.sched.Cancel(watchdogKey(s))
	o.sched.Cancel(syntheticKey(s))

	results := o.applyResultsLocked(ctx, s)

	s.state = StateClosed
	o.registry.remove(s)

	endedAt := o.clock.Now()
	rows := s.board.Rows()
	for _, h := range s.humans() {
		res := results[h.participant.ID()]
		payload := events.SessionEndedPayload{
			Outcome:     outcomeFor(outcome, h.participant),
			Reason:      reasonFor(outcome),
			Board:       rows,
			Rated:       s.rated,
			RatingDelta: res.delta,
			EndedAt:     endedAt,
		}
		if res.saved {
			payload.NewRating = res.profile.Rating
		} else {
			payload.RatingDelta = 0
		}
		o.notifyLocked(ctx, s, h.participant, events.EventTypeSessionEnded, payload)
	}

	o.recordLocked(ctx, s, results, endedAt)

	ev := log.Info().
		Str("session_id", s.id).
		Str("result", outcome.Kind.String()).
		Str("reason", outcome.Reason.String()).
		Bool("rated", s.rated).
		Int("moves", len(s.moves))
	if outcome.Kind == board.Win {
		ev = ev.Str("winner", outcome.Winner.String())
	}
	ev.Msg("session closed")
}

// applyResultsLocked updates statistics and ratings of both humans. A
// missing profile skips that participant and counts as the default rating
// for the opponent's computation.
func (o *Orchestrator) applyResultsLocked(ctx context.Context, s *Session) map[string]settlement {
	results := make(map[string]settlement, 2)
	for _, h := range s.humans() {
		prof, err := o.store.GetProfile(ctx, h.participant.ID())
		switch {
		case errors.Is(err, models.ErrProfileNotFound) || (err == nil && prof == nil):
			log.Warn().
				Str("session_id", s.id).
				Str("participant", h.participant.String()).
				Str("kind", string(KindProfileUnavailable)).
				Msg("profile missing at settlement - skipping update")
			prof = nil
		case err != nil:
			log.Error().Err(err).Str("session_id", s.id).Str("participant", h.participant.String()).Msg("failed to load profile for settlement")
			prof = nil
		}
		results[h.participant.ID()] = settlement{profile: prof}
	}

	ratingOf := func(p models.Participant) int {
		if res, ok := results[p.ID()]; ok && res.profile != nil {
			return res.profile.Rating
		}
		return models.DefaultRating
	}
	deltas := o.ratingDeltas(s, ratingOf)

	for _, h := range s.humans() {
		id := h.participant.ID()
		res := results[id]
		if res.profile == nil {
			continue
		}
		res.delta = deltas[id]
		applyStats(res.profile, s.outcome, h.participant, res.delta)
		if err := o.store.SaveProfile(ctx, res.profile); err != nil {
			log.Error().Err(err).Str("session_id", s.id).Str("participant", h.participant.String()).Msg("failed to save profile")
		} else {
			res.saved = true
		}
		results[id] = res
	}
	return results
}

// ratingDeltas returns signed rating changes keyed by human id.
func (o *Orchestrator) ratingDeltas(s *Session, ratingOf func(models.Participant) int) map[string]int {
	deltas := make(map[string]int, 2)
	outcome := s.outcome
	if !s.rated || outcome.Kind != board.Win {
		return deltas
	}
	winner := outcome.Winner
	loser := s.other(winner).participant

	switch outcome.Reason {
	case ReasonTimeout:
		if loser.IsHuman() {
			deltas[loser.ID()] = -o.calc.TimeoutPenalty()
		}
	case ReasonResign:
		if loser.IsHuman() {
			deltas[loser.ID()] = -o.calc.ResignationPenalty()
		}
	default:
		switch {
		case loser.IsSynthetic():
			deltas[winner.ID()] = o.calc.SyntheticWinReward()
		case winner.IsSynthetic():
			deltas[loser.ID()] = -o.calc.SyntheticLossPenalty()
		default:
			w, l := o.calc.Change(ratingOf(winner), ratingOf(loser), false)
			deltas[winner.ID()] = w
			deltas[loser.ID()] = -l
		}
	}
	return deltas
}

func applyStats(prof *models.Profile, outcome Outcome, p models.Participant, delta int) {
	prof.GamesPlayed++
	switch {
	case outcome.Kind == board.Draw:
		prof.Draws++
	case outcome.Winner == p:
		prof.Wins++
	default:
		prof.Losses++
	}
	prof.Rating += delta
}

func outcomeFor(outcome Outcome, p models.Participant) string {
	switch {
	case outcome.Kind == board.Draw:
		return events.OutcomeDraw
	case outcome.Winner == p:
		return events.OutcomeWin
	default:
		return events.OutcomeLoss
	}
}

func reasonFor(outcome Outcome) string {
	switch outcome.Reason {
	case ReasonTimeout:
		return events.ReasonTimeout
	case ReasonResign:
		return events.ReasonResign
	}
	if outcome.Kind == board.Draw {
		return events.ReasonDraw
	}
	return events.ReasonLine
}

func (o *Orchestrator) recordLocked(ctx context.Context, s *Session, results map[string]settlement, endedAt time.Time) {
	if o.recorder == nil {
		return
	}
	rec := models.MatchRecord{
		SessionID:   s.id,
		FirstID:     s.first.participant.ID(),
		SecondID:    s.second.participant.ID(),
		VsSynthetic: s.vsSynthetic(),
		Rated:       s.rated,
		Board:       s.board.Rows(),
		Moves:       append([]models.MoveRecord(nil), s.moves...),
		Outcome:     s.outcome.Kind.String(),
		Reason:      s.outcome.Reason.String(),
		WinnerID:    s.outcome.Winner.ID(),
		FirstDelta:  results[s.first.participant.ID()].delta,
		SecondDelta: results[s.second.participant.ID()].delta,
		StartedAt:   s.createdAt,
		EndedAt:     endedAt,
	}
	if err := o.recorder.RecordMatch(ctx, rec); err != nil {
		log.Error().Err(err).Str("session_id", s.id).Msg("failed to record match")
	}
}

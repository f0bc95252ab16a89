package orchestrator

import (
	"context"

	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

// syntheticTurnLocked makes the synthetic opponent reply when it holds the
// turn, either inline or after the cosmetic delay.
func (o *Orchestrator) syntheticTurnLocked(ctx context.Context, s *Session) {
	if s.state != StateAwaitingMove || !s.turn.IsSynthetic() {
		return
	}
	if o.cfg.SyntheticDelay <= 0 {
		o.playSyntheticLocked(ctx, s)
		return
	}
	seq := s.moveSeq
	o.sched.Schedule(syntheticKey(s), o.cfg.SyntheticDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateAwaitingMove || s.moveSeq != seq {
			return
		}
		o.playSyntheticLocked(o.ctx, s)
	})
}

func (o *Orchestrator) playSyntheticLocked(ctx context.Context, s *Session) {
	human := s.other(models.Synthetic)
	tier := o.resolver.DifficultyFor(human.rating)

	cell, err := o.policy.Choose(s.board, s.roleOf(models.Synthetic), tier)
	if err != nil {
		log.Panic().Err(err).Str("session_id", s.id).Strs("board", s.board.Rows()).Msg("synthetic opponent has no legal move on a live board")
	}

	log.Debug().
		Str("session_id", s.id).
		Str("tier", tier.String()).
		Int("row", cell.Row).
		Int("col", cell.Col).
		Msg("synthetic opponent chose move")

	if err := o.moveLocked(ctx, s, models.Synthetic, cell); err != nil {
		log.Panic().Err(err).Str("session_id", s.id).Msg("synthetic opponent move rejected")
	}
}

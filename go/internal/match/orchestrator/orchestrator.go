package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tictactoe/go/internal/game/board"
	"github.com/mcdev12/tictactoe/go/internal/game/opponent"
	"github.com/mcdev12/tictactoe/go/internal/game/rating"
	"github.com/mcdev12/tictactoe/go/internal/match/events"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ProfileStore reads and writes participant profiles. GetProfile returns
// models.ErrProfileNotFound when the participant has no profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
}

// Notifier delivers an event to one participant. The returned handle
// identifies the delivered message for later in-place edits; it may be empty.
type Notifier interface {
	Notify(ctx context.Context, to models.Participant, event events.Event) (string, error)
}

// DifficultyResolver picks the synthetic opponent's tier for a human rating.
type DifficultyResolver interface {
	DifficultyFor(rating int) opponent.Tier
}

// Recorder persists finished matches.
type Recorder interface {
	RecordMatch(ctx context.Context, match models.MatchRecord) error
}

// Config holds the timing and pairing parameters of the engine.
type Config struct {
	// MatchWait is how long a queued participant waits before resolution.
	MatchWait time.Duration `yaml:"match_wait"`
	// MoveTimeout is the per-move window.
	MoveTimeout time.Duration `yaml:"move_timeout"`
	// RatingWindow is the largest rating difference paired together.
	RatingWindow int `yaml:"rating_window"`
	// SyntheticDelay is the cosmetic pause before the synthetic opponent
	// moves. Zero applies its move inline.
	SyntheticDelay time.Duration `yaml:"synthetic_delay"`
	Workers        int           `yaml:"workers"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		MatchWait:      5 * time.Second,
		MoveTimeout:    60 * time.Second,
		RatingWindow:   300,
		SyntheticDelay: time.Second,
		Workers:        4,
	}
}

// Orchestrator owns the registry, the matchmaking queue and the scheduler.
// Construct one per process and pass it by reference.
type Orchestrator struct {
	cfg      Config
	clock    Clock
	store    ProfileStore
	notifier Notifier
	calc     *rating.Calculator
	resolver DifficultyResolver
	policy   *opponent.Policy
	rng      opponent.Rand
	recorder Recorder

	registry *Registry
	queue    *Queue
	sched    *Scheduler

	// ctx scopes timer-driven work.
	ctx    context.Context
	cancel context.CancelFunc
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithClock(clock Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

func WithResolver(resolver DifficultyResolver) Option {
	return func(o *Orchestrator) { o.resolver = resolver }
}

// WithRand sets the randomness used for moves, tiers and aliases.
func WithRand(rng opponent.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// New creates an orchestrator. Call Close to stop its timers.
func New(cfg Config, store ProfileStore, notifier Notifier, calc *rating.Calculator, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.MatchWait <= 0 {
		cfg.MatchWait = def.MatchWait
	}
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = def.MoveTimeout
	}
	if cfg.RatingWindow < 0 {
		cfg.RatingWindow = def.RatingWindow
	}
	if cfg.SyntheticDelay < 0 {
		cfg.SyntheticDelay = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if calc == nil {
		calc = rating.NewDefaultCalculator()
	}

	o := &Orchestrator{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		store:    store,
		notifier: notifier,
		calc:     calc,
		registry: NewRegistry(),
		queue:    NewQueue(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = opponent.DefaultRand
	}
	if o.resolver == nil {
		o.resolver = opponent.NewRankResolver(calc, o.rng)
	}
	o.policy = opponent.NewPolicy(o.rng)
	o.sched = NewScheduler(o.clock, cfg.Workers)
	o.ctx, o.cancel = context.WithCancel(context.Background())

	log.Info().
		Dur("match_wait", cfg.MatchWait).
		Dur("move_timeout", cfg.MoveTimeout).
		Int("rating_window", cfg.RatingWindow).
		Dur("synthetic_delay", cfg.SyntheticDelay).
		Msg("match orchestrator created")
	return o
}

// Close stops every pending timer. Live sessions are left as they are.
func (o *Orchestrator) Close() {
	o.sched.Close()
	o.cancel()
	log.Info().
		Int("live_sessions", o.registry.Len()).
		Int("queued", o.queue.Len()).
		Msg("match orchestrator stopped")
}

// Calculator exposes the rating calculator in use.
func (o *Orchestrator) Calculator() *rating.Calculator { return o.calc }

// QueueLen returns the number of participants waiting for a match.
func (o *Orchestrator) QueueLen() int { return o.queue.Len() }

// LiveSessions returns the number of sessions in the registry.
func (o *Orchestrator) LiveSessions() int { return o.registry.Len() }

// IsQueued reports whether p is waiting for a match.
func (o *Orchestrator) IsQueued(p models.Participant) bool { return o.queue.Contains(p) }

// SessionOf returns a snapshot of the live session p is playing in.
func (o *Orchestrator) SessionOf(p models.Participant) (Snapshot, bool) {
	s, ok := o.registry.ByParticipant(p)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

func queueKey(p models.Participant) string { return "queue:" + p.ID() }
func watchdogKey(s *Session) string      { return "watchdog:" + s.id }
func syntheticKey(s *Session) string     { return "synthetic:" + s.id }

// loadProfile maps an absent profile onto a ProfileUnavailable rejection.
func (o *Orchestrator) loadProfile(ctx context.Context, p models.Participant) (*models.Profile, error) {
	prof, err := o.store.GetProfile(ctx, p.ID())
	if errors.Is(err, models.ErrProfileNotFound) || (err == nil && prof == nil) {
		log.Warn().Str("participant", p.String()).Str("kind", string(KindProfileUnavailable)).Msg("profile not found")
		return nil, reject(KindProfileUnavailable, "no profile for %s", p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return prof, nil
}

// RequestMatch puts p in the matchmaking queue. Resolution runs once after
// the configured wait.
func (o *Orchestrator) RequestMatch(ctx context.Context, p models.Participant) error {
	if !p.IsHuman() {
		return reject(KindInvalidParticipant, "%s cannot request a match", p)
	}
	if o.registry.Contains(p) {
		return reject(KindAlreadyInSession, "%s is already playing", p)
	}
	prof, err := o.loadProfile(ctx, p)
	if err != nil {
		return err
	}

	o.queue.mu.Lock()
	defer o.queue.mu.Unlock()

	if o.registry.Contains(p) {
		return reject(KindAlreadyInSession, "%s is already playing", p)
	}
	if _, ok := o.queue.getLocked(p); ok {
		return reject(KindAlreadyQueued, "%s is already queued", p)
	}
	entry := o.queue.addLocked(QueueEntry{
		Participant: p,
		Name:        prof.Username,
		Rating:      prof.Rating,
		EnqueuedAt:  o.clock.Now(),
	})
	ticket := entry.ticket
	o.sched.Schedule(queueKey(p), o.cfg.MatchWait, func() { o.resolve(p, ticket) })

	log.Info().
		Str("participant", p.String()).
		Int("rating", prof.Rating).
		Int("queue_len", len(o.queue.entries)).
		Msg("participant queued")
	return nil
}

// CancelMatchRequest removes p from the queue. It is a no-op when p is not
// queued.
func (o *Orchestrator) CancelMatchRequest(ctx context.Context, p models.Participant) error {
	if !p.IsHuman() {
		return reject(KindInvalidParticipant, "%s cannot cancel a match request", p)
	}
	o.queue.mu.Lock()
	defer o.queue.mu.Unlock()

	if !o.queue.removeLocked(p) {
		log.Debug().Str("participant", p.String()).Msg("cancel ignored - not queued")
		return nil
	}
	o.sched.Cancel(queueKey(p))
	log.Info().Str("participant", p.String()).Msg("match request cancelled")
	return nil
}

// resolve runs when p's wait window elapses. It pairs p with the earliest
// queued participant within the rating window, or with the synthetic
// opponent. Membership is re-checked under the queue lock that dequeues.
func (o *Orchestrator) resolve(p models.Participant, ticket uint64) {
	o.queue.mu.Lock()
	entry, ok := o.queue.getLocked(p)
	if !ok || entry.ticket != ticket {
		o.queue.mu.Unlock()
		log.Debug().Str("participant", p.String()).Msg("resolution skipped - no longer queued")
		return
	}

	var s *Session
	now := o.clock.Now()
	if partner, found := o.queue.partnerLocked(entry, o.cfg.RatingWindow); found {
		o.queue.removeLocked(entry.Participant)
		o.queue.removeLocked(partner.Participant)
		o.sched.Cancel(queueKey(partner.Participant))
		s = newSession(entry.seat(), partner.seat(), true, now)
	} else {
		o.queue.removeLocked(entry.Participant)
		synthetic := seat{participant: models.Synthetic, name: opponent.Alias(o.rng)}
		s = newSession(entry.seat(), synthetic, true, now)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := o.registry.insert(s)
	o.queue.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id).Msg("failed to register paired session")
		return
	}

	log.Info().
		Str("session_id", s.id).
		Str("first", s.first.participant.String()).
		Str("second", s.second.participant.String()).
		Bool("vs_synthetic", s.vsSynthetic()).
		Msg("match resolved")
	o.startLocked(o.ctx, s)
}

// AcceptDirectChallenge starts an unrated session between inviter, who
// moves first, and invitee.
func (o *Orchestrator) AcceptDirectChallenge(ctx context.Context, inviter, invitee models.Participant) error {
	if !inviter.IsHuman() || !invitee.IsHuman() {
		return reject(KindInvalidParticipant, "direct challenges are between humans")
	}
	if inviter == invitee {
		return reject(KindInvalidParticipant, "%s cannot challenge themselves", inviter)
	}
	seats := make([]seat, 0, 2)
	for _, p := range []models.Participant{inviter, invitee} {
		if o.registry.Contains(p) {
			return reject(KindAlreadyInSession, "%s is already playing", p)
		}
		prof, err := o.loadProfile(ctx, p)
		if err != nil {
			return err
		}
		seats = append(seats, seat{participant: p, rating: prof.Rating, name: prof.Username})
	}

	o.queue.mu.Lock()
	for _, p := range []models.Participant{inviter, invitee} {
		if _, ok := o.queue.getLocked(p); ok {
			o.queue.mu.Unlock()
			return reject(KindAlreadyQueued, "%s is waiting for a match", p)
		}
	}
	s := newSession(seats[0], seats[1], false, o.clock.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	err := o.registry.insert(s)
	o.queue.mu.Unlock()
	if err != nil {
		return err
	}

	log.Info().
		Str("session_id", s.id).
		Str("inviter", inviter.String()).
		Str("invitee", invitee.String()).
		Msg("direct challenge accepted")
	o.startLocked(ctx, s)
	return nil
}

// SubmitMove places p's mark at (row, col).
func (o *Orchestrator) SubmitMove(ctx context.Context, p models.Participant, row, col int) error {
	s, ok := o.registry.ByParticipant(p)
	if !ok {
		return reject(KindSessionNotFound, "%s is not playing", p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return o.moveLocked(ctx, s, p, board.Cell{Row: row, Col: col})
}

// Resign ends p's session as a loss for p.
func (o *Orchestrator) Resign(ctx context.Context, p models.Participant) error {
	s, ok := o.registry.ByParticipant(p)
	if !ok {
		return reject(KindSessionNotFound, "%s is not playing", p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingMove {
		return reject(KindSessionNotFound, "session %s is %s", s.id, s.state)
	}

	log.Info().Str("session_id", s.id).Str("participant", p.String()).Msg("participant resigned")
	o.settleLocked(ctx, s, Outcome{Kind: board.Win, Winner: s.other(p).participant, Reason: ReasonResign})
	return nil
}

// moveLocked is the single move path for humans and the synthetic opponent.
func (o *Orchestrator) moveLocked(ctx context.Context, s *Session, p models.Participant, cell board.Cell) error {
	if s.state != StateAwaitingMove {
		return reject(KindSessionNotFound, "session %s is %s", s.id, s.state)
	}
	if s.turn != p {
		return reject(KindNotYourTurn, "waiting for %s", s.turn)
	}

	res, err := s.place(p, cell, o.clock.Now())
	if err != nil {
		return moveRejection(err)
	}

	log.Debug().
		Str("session_id", s.id).
		Str("participant", p.String()).
		Int("row", cell.Row).
		Int("col", cell.Col).
		Uint64("move_seq", s.moveSeq).
		Msg("move accepted")

	if res.Terminal() {
		outcome := Outcome{Kind: res.Kind, Reason: ReasonBoard}
		if res.Kind == board.Win {
			outcome.Winner = s.seatOf(res.Winner).participant
		}
		o.settleLocked(ctx, s, outcome)
		return nil
	}

	o.armWatchdogLocked(s)
	o.broadcastBoardLocked(ctx, s, cell)
	o.syntheticTurnLocked(ctx, s)
	return nil
}

// armWatchdogLocked replaces the session's watchdog. The firing is tied to
// the current move sequence, so a timer that fires after a later move is
// ignored.
func (o *Orchestrator) armWatchdogLocked(s *Session) {
	seq := s.moveSeq
	o.sched.Schedule(watchdogKey(s), o.cfg.MoveTimeout, func() { o.timeoutElapsed(s, seq) })
}

func (o *Orchestrator) timeoutElapsed(s *Session, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingMove || s.moveSeq != seq {
		log.Debug().Str("session_id", s.id).Uint64("armed_seq", seq).Uint64("move_seq", s.moveSeq).Msg("stale watchdog ignored")
		return
	}
	loser := s.turn
	log.Info().Str("session_id", s.id).Str("participant", loser.String()).Msg("move timeout elapsed")
	o.settleLocked(o.ctx, s, Outcome{Kind: board.Win, Winner: s.other(loser).participant, Reason: ReasonTimeout})
}

package invites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

const codePrefix = "invite_"

var (
	ErrNotFound   = errors.New("invite not found")
	ErrUsed       = errors.New("invite already used")
	ErrExpired    = errors.New("invite expired")
	ErrSelfInvite = errors.New("cannot accept your own invite")
	ErrNotHuman   = errors.New("only human participants can use invites")
)

// Challenger starts an unrated match between two humans.
type Challenger interface {
	AcceptDirectChallenge(ctx context.Context, inviter, invitee models.Participant) error
}

// Invite is a single-use direct challenge code.
type Invite struct {
	Code      string    `json:"code"`
	InviterID string    `json:"inviter_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UsedBy    string    `json:"used_by,omitempty"`
	UsedAt    time.Time `json:"used_at,omitempty"`
}

func (i Invite) Used() bool { return i.UsedBy != "" }

type Config struct {
	TTL           time.Duration `yaml:"ttl"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

func DefaultConfig() Config {
	return Config{
		TTL:           24 * time.Hour,
		PurgeInterval: 10 * time.Minute,
	}
}

// App issues and redeems invite codes.
type App struct {
	mu         sync.Mutex
	invites    map[string]Invite
	redeeming  map[string]struct{}
	challenger Challenger
	clock      clockwork.Clock
	cfg        Config
	scheduler  gocron.Scheduler
}

// NewApp creates an invites App. A nil clock uses the real clock.
func NewApp(cfg Config, challenger Challenger, clock clockwork.Clock) *App {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = def.PurgeInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		invites:    make(map[string]Invite),
		redeeming:  make(map[string]struct{}),
		challenger: challenger,
		clock:      clock,
		cfg:        cfg,
	}
}

// Create issues a new code for inviter.
func (a *App) Create(_ context.Context, inviter models.Participant) (*Invite, error) {
	if !inviter.IsHuman() {
		return nil, ErrNotHuman
	}
	now := a.clock.Now()
	inv := Invite{
		Code:      newCode(inviter.ID()),
		InviterID: inviter.ID(),
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.TTL),
	}

	a.mu.Lock()
	a.invites[inv.Code] = inv
	a.mu.Unlock()

	log.Info().Str("inviter_id", inv.InviterID).Str("code", inv.Code).Msg("invite created")
	return &inv, nil
}

// Get returns an invite by code.
func (a *App) Get(_ context.Context, code string) (*Invite, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	inv, ok := a.invites[strings.TrimSpace(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

// Redeem consumes code on behalf of redeemer and starts the challenge. The
// code stays valid when the challenge is rejected. While a redemption is in
// flight other redeemers of the same code get ErrUsed.
func (a *App) Redeem(ctx context.Context, code string, redeemer models.Participant) (*Invite, error) {
	if !redeemer.IsHuman() {
		return nil, ErrNotHuman
	}
	code = strings.TrimSpace(code)

	inv, err := a.reserve(code, redeemer)
	if err != nil {
		return nil, err
	}

	if err := a.challenger.AcceptDirectChallenge(ctx, models.Human(inv.InviterID), redeemer); err != nil {
		a.mu.Lock()
		delete(a.redeeming, code)
		a.mu.Unlock()
		return nil, fmt.Errorf("failed to start challenge: %w", err)
	}

	a.mu.Lock()
	delete(a.redeeming, code)
	inv.UsedBy = redeemer.ID()
	inv.UsedAt = a.clock.Now()
	a.invites[code] = inv
	a.mu.Unlock()

	log.Info().
		Str("code", code).
		Str("inviter_id", inv.InviterID).
		Str("invitee_id", inv.UsedBy).
		Msg("invite redeemed")
	return &inv, nil
}

// reserve validates code for redeemer and marks it as being redeemed.
func (a *App) reserve(code string, redeemer models.Participant) (Invite, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	inv, ok := a.invites[code]
	_, inFlight := a.redeeming[code]
	switch {
	case !ok:
		return Invite{}, ErrNotFound
	case inv.Used() || inFlight:
		return Invite{}, ErrUsed
	case !a.clock.Now().Before(inv.ExpiresAt):
		return Invite{}, ErrExpired
	case inv.InviterID == redeemer.ID():
		return Invite{}, ErrSelfInvite
	}
	a.redeeming[code] = struct{}{}
	return inv, nil
}

// Purge drops used and expired invites and returns how many were removed.
func (a *App) Purge() int {
	now := a.clock.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for code, inv := range a.invites {
		if _, inFlight := a.redeeming[code]; inFlight {
			continue
		}
		if inv.Used() || !now.Before(inv.ExpiresAt) {
			delete(a.invites, code)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored invites.
func (a *App) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.invites)
}

// StartPurge runs Purge every PurgeInterval until Stop.
func (a *App) StartPurge() error {
	s, err := gocron.NewScheduler(gocron.WithClock(a.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(a.cfg.PurgeInterval),
		gocron.NewTask(func() {
			if n := a.Purge(); n > 0 {
				log.Debug().Int("removed", n).Msg("purged invites")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule invite purge: %w", err)
	}
	s.Start()
	a.scheduler = s
	return nil
}

// Stop shuts down the purge job.
func (a *App) Stop() error {
	if a.scheduler == nil {
		return nil
	}
	err := a.scheduler.Shutdown()
	a.scheduler = nil
	return err
}

func newCode(inviterID string) string {
	return codePrefix + inviterID + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

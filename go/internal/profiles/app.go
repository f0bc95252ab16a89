package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/tictactoe/go/internal/game/rating"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TopLimit is the size of the leaderboard.
const TopLimit = 10

// ProfilesRepository defines what the app layer needs from the repository
type ProfilesRepository interface {
	CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
	Top(ctx context.Context, limit int) ([]*models.Profile, error)
	Position(ctx context.Context, id string) (int, error)
}

// View is a profile with its derived rank and leaderboard position.
type View struct {
	Profile  *models.Profile `json:"profile"`
	Rank     rating.Rank     `json:"rank"`
	Position int             `json:"position"`
	WinRate  float64         `json:"win_rate"`
}

// App handles profile business logic
type App struct {
	repo  ProfilesRepository
	calc  *rating.Calculator
	clock func() time.Time
}

// NewApp creates a new profiles App
func NewApp(repo ProfilesRepository, calc *rating.Calculator) *App {
	if calc == nil {
		calc = rating.NewDefaultCalculator()
	}
	return &App{repo: repo, calc: calc, clock: time.Now}
}

// GetProfile and SaveProfile let App serve as the orchestrator's store.
func (a *App) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return a.repo.GetProfile(ctx, id)
}

func (a *App) SaveProfile(ctx context.Context, p *models.Profile) error {
	return a.repo.SaveProfile(ctx, p)
}

// Ensure returns the profile for id, registering it with the default rating
// when absent. A non-empty username replaces a stale one.
func (a *App) Ensure(ctx context.Context, id, username string) (*models.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("validation failed: participant id is required")
	}
	username = strings.TrimSpace(username)

	existing, err := a.repo.GetProfile(ctx, id)
	switch {
	case err == nil:
		if username != "" && username != existing.Username {
			existing.Username = username
			if err := a.repo.SaveProfile(ctx, existing); err != nil {
				return nil, fmt.Errorf("failed to update username: %w", err)
			}
		}
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	created, err := a.repo.CreateProfile(ctx, &models.Profile{
		ID:           id,
		Username:     username,
		Rating:       models.DefaultRating,
		RegisteredAt: a.clock().UTC(),
	})
	if errors.Is(err, ErrExists) {
		// Registered concurrently.
		return a.repo.GetProfile(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Info().Str("participant_id", id).Str("username", username).Msg("registered profile")
	return created, nil
}

// View returns a profile with rank, position and win rate.
func (a *App) View(ctx context.Context, id string) (*View, error) {
	p, err := a.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	pos, err := a.repo.Position(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &View{
		Profile:  p,
		Rank:     a.calc.RankFor(p.Rating),
		Position: pos,
		WinRate:  p.WinRate(),
	}, nil
}

// Top returns the leaderboard.
func (a *App) Top(ctx context.Context) ([]*models.Profile, error) {
	top, err := a.repo.Top(ctx, TopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return top, nil
}

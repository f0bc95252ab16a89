package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/mcdev12/tictactoe/go/internal/profiles/db"
	"github.com/mcdev12/tictactoe/go/internal/sqlutil"
)

var (
	// ErrNotFound is returned when a participant has no profile.
	ErrNotFound = models.ErrProfileNotFound
	// ErrExists is returned when registering an id that already has a profile.
	ErrExists = errors.New("profile already exists")
)

// uniqueViolation is the postgres SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateProfile(ctx context.Context, arg db.CreateProfileParams) (db.Profile, error)
	GetProfile(ctx context.Context, id string) (db.Profile, error)
	UpdateProfileStats(ctx context.Context, arg db.UpdateProfileStatsParams) (db.Profile, error)
	ListTopProfiles(ctx context.Context, limit int32) ([]db.Profile, error)
	GetProfilePosition(ctx context.Context, id string) (int64, error)
}

// Repository implements profile data access on postgres
type Repository struct {
	db      *sql.DB
	queries Querier
}

// NewRepository creates a new profiles repository
func NewRepository(queries Querier, database *sql.DB) *Repository {
	return &Repository{
		queries: queries,
		db:      database,
	}
}

// Migrate creates the schema inside a transaction.
func (r *Repository) Migrate(ctx context.Context) error {
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *db.Queries { return db.New(tx) }, func(q *db.Queries) error {
		return q.Migrate(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to migrate profiles: %w", err)
	}
	return nil
}

// CreateProfile inserts a new profile.
func (r *Repository) CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	row, err := r.queries.CreateProfile(ctx, db.CreateProfileParams{
		ID:           p.ID,
		Username:     sqlutil.ToSqlString(p.Username),
		Rating:       int32(p.Rating),
		RegisteredAt: sqlutil.ToSqlTime(p.RegisteredAt),
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrExists, p.ID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return dbProfileToModel(row), nil
}

// GetProfile retrieves a profile by participant id
func (r *Repository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row, err := r.queries.GetProfile(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return dbProfileToModel(row), nil
}

// SaveProfile writes rating and statistics of an existing profile.
func (r *Repository) SaveProfile(ctx context.Context, p *models.Profile) error {
	_, err := r.queries.UpdateProfileStats(ctx, db.UpdateProfileStatsParams{
		ID:          p.ID,
		Username:    sqlutil.ToSqlString(p.Username),
		Rating:      int32(p.Rating),
		GamesPlayed: int32(p.GamesPlayed),
		Wins:        int32(p.Wins),
		Losses:      int32(p.Losses),
		Draws:       int32(p.Draws),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Top returns the highest rated profiles.
func (r *Repository) Top(ctx context.Context, limit int) ([]*models.Profile, error) {
	rows, err := r.queries.ListTopProfiles(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list top profiles: %w", err)
	}
	out := make([]*models.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, dbProfileToModel(row))
	}
	return out, nil
}

// Position returns the 1-based leaderboard position of id.
func (r *Repository) Position(ctx context.Context, id string) (int, error) {
	if _, err := r.GetProfile(ctx, id); err != nil {
		return 0, err
	}
	pos, err := r.queries.GetProfilePosition(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get profile position: %w", err)
	}
	return int(pos), nil
}

// dbProfileToModel converts a database profile to domain model
func dbProfileToModel(row db.Profile) *models.Profile {
	return &models.Profile{
		ID:           row.ID,
		Username:     sqlutil.FromSqlString(row.Username, ""),
		Rating:       int(row.Rating),
		GamesPlayed:  int(row.GamesPlayed),
		Wins:         int(row.Wins),
		Losses:       int(row.Losses),
		Draws:        int(row.Draws),
		RegisteredAt: row.RegisteredAt,
	}
}

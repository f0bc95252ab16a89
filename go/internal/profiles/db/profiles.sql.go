package db

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id            TEXT PRIMARY KEY,
    username      TEXT,
    rating        INTEGER NOT NULL DEFAULT 100,
    games_played  INTEGER NOT NULL DEFAULT 0,
    wins          INTEGER NOT NULL DEFAULT 0,
    losses        INTEGER NOT NULL DEFAULT 0,
    draws         INTEGER NOT NULL DEFAULT 0,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS profiles_rating_idx ON profiles (rating DESC);
`

// Migrate creates the profiles table if it does not exist.
func (q *Queries) Migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, schema)
	return err
}

const createProfile = `-- name: CreateProfile :one
INSERT INTO profiles (id, username, rating, registered_at, updated_at)
VALUES ($1, $2, $3, COALESCE($4, now()), now())
RETURNING id, username, rating, games_played, wins, losses, draws, registered_at, updated_at
`

type CreateProfileParams struct {
	ID           string
	Username     sql.NullString
	Rating       int32
	RegisteredAt sql.NullTime
}

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	row := q.db.QueryRowContext(ctx, createProfile, arg.ID, arg.Username, arg.Rating, arg.RegisteredAt)
	return scanProfile(row)
}

const getProfile = `-- name: GetProfile :one
SELECT id, username, rating, games_played, wins, losses, draws, registered_at, updated_at
FROM profiles
WHERE id = $1
`

func (q *Queries) GetProfile(ctx context.Context, id string) (Profile, error) {
	row := q.db.QueryRowContext(ctx, getProfile, id)
	return scanProfile(row)
}

const updateProfileStats = `-- name: UpdateProfileStats :one
UPDATE profiles
SET username = $2, rating = $3, games_played = $4, wins = $5, losses = $6, draws = $7, updated_at = now()
WHERE id = $1
RETURNING id, username, rating, games_played, wins, losses, draws, registered_at, updated_at
`

type UpdateProfileStatsParams struct {
	ID          string
	Username    sql.NullString
	Rating      int32
	GamesPlayed int32
	Wins        int32
	Losses      int32
	Draws       int32
}

func (q *Queries) UpdateProfileStats(ctx context.Context, arg UpdateProfileStatsParams) (Profile, error) {
	row := q.db.QueryRowContext(ctx, updateProfileStats,
		arg.ID,
		arg.Username,
		arg.Rating,
		arg.GamesPlayed,
		arg.Wins,
		arg.Losses,
		arg.Draws,
	)
	return scanProfile(row)
}

const listTopProfiles = `-- name: ListTopProfiles :many
SELECT id, username, rating, games_played, wins, losses, draws, registered_at, updated_at
FROM profiles
ORDER BY rating DESC, registered_at ASC
LIMIT $1
`

func (q *Queries) ListTopProfiles(ctx context.Context, limit int32) ([]Profile, error) {
	rows, err := q.db.QueryContext(ctx, listTopProfiles, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Profile
	for rows.Next() {
		i, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getProfilePosition = `-- name: GetProfilePosition :one
SELECT COUNT(*) + 1
FROM profiles
WHERE rating > (SELECT rating FROM profiles WHERE id = $1)
`

func (q *Queries) GetProfilePosition(ctx context.Context, id string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getProfilePosition, id)
	var position int64
	err := row.Scan(&position)
	return position, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row scanner) (Profile, error) {
	var i Profile
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.Rating,
		&i.GamesPlayed,
		&i.Wins,
		&i.Losses,
		&i.Draws,
		&i.RegisteredAt,
		&i.UpdatedAt,
	)
	return i, err
}

package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/mcdev12/tictactoe/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_history (
    session_id   TEXT PRIMARY KEY,
    first_id     TEXT,
    second_id    TEXT,
    vs_synthetic BOOLEAN NOT NULL,
    rated        BOOLEAN NOT NULL,
    board        TEXT NOT NULL,
    moves        JSONB,
    outcome      TEXT NOT NULL,
    reason       TEXT NOT NULL,
    winner_id    TEXT,
    first_delta  INTEGER NOT NULL DEFAULT 0,
    second_delta INTEGER NOT NULL DEFAULT 0,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS match_history_first_idx ON match_history (first_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS match_history_second_idx ON match_history (second_id, ended_at DESC);
`

const insertMatch = `
INSERT INTO match_history (
    session_id, first_id, second_id, vs_synthetic, rated, board, moves,
    outcome, reason, winner_id, first_delta, second_delta, started_at, ended_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (session_id) DO NOTHING
`

const listMatches = `
SELECT session_id, first_id, second_id, vs_synthetic, rated, board, moves,
       outcome, reason, winner_id, first_delta, second_delta, started_at, ended_at
FROM match_history
WHERE first_id = $1 OR second_id = $1
ORDER BY ended_at DESC
LIMIT $2
`

// DB is the subset of pgxpool.Pool the recorder uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Recorder writes finished matches to postgres.
type Recorder struct {
	db DB
}

func NewRecorder(db DB) *Recorder {
	return &Recorder{db: db}
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the history table.
func (r *Recorder) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate match history: %w", err)
	}
	return nil
}

// RecordMatch stores one finished match. Recording the same session twice is
// a no-op.
func (r *Recorder) RecordMatch(ctx context.Context, m models.MatchRecord) error {
	moves, err := sqlutil.ToNullRawMessage(m.Moves)
	if err != nil {
		return fmt.Errorf("failed to encode moves: %w", err)
	}
	_, err = r.db.Exec(ctx, insertMatch,
		m.SessionID,
		nullText(m.FirstID),
		nullText(m.SecondID),
		m.VsSynthetic,
		m.Rated,
		joinBoard(m.Board),
		moves,
		m.Outcome,
		m.Reason,
		nullText(m.WinnerID),
		m.FirstDelta,
		m.SecondDelta,
		m.StartedAt,
		m.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}
	log.Debug().Str("session_id", m.SessionID).Msg("match recorded")
	return nil
}

// ListForParticipant returns the most recent matches id took part in.
func (r *Recorder) ListForParticipant(ctx context.Context, id string, limit int) ([]models.MatchRecord, error) {
	rows, err := r.db.Query(ctx, listMatches, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []models.MatchRecord
	for rows.Next() {
		var (
			m                         models.MatchRecord
			firstID, secondID, winner *string
			board                     string
			moves                     pqtype.NullRawMessage
			startedAt, endedAt        time.Time
		)
		if err := rows.Scan(
			&m.SessionID, &firstID, &secondID, &m.VsSynthetic, &m.Rated, &board, &moves,
			&m.Outcome, &m.Reason, &winner, &m.FirstDelta, &m.SecondDelta, &startedAt, &endedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.FirstID = deref(firstID)
		m.SecondID = deref(secondID)
		m.WinnerID = deref(winner)
		m.Board = splitBoard(board)
		m.StartedAt = startedAt
		m.EndedAt = endedAt
		if err := sqlutil.FromNullRawMessage(moves, &m.Moves); err != nil {
			return nil, fmt.Errorf("failed to decode moves: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return out, nil
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Boards are stored as rows joined by '/'.
func joinBoard(rows []string) string { return strings.Join(rows, "/") }

func splitBoard(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

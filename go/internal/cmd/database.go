package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/mcdev12/tictactoe/go/internal/dbconfig"
	"github.com/mcdev12/tictactoe/go/internal/history"
	"github.com/rs/zerolog/log"
)

// setupDatabase opens the database/sql handle used by the profiles store.
func setupDatabase(ctx context.Context, dbCfg dbconfig.Config) (*sql.DB, error) {
	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", dbCfg.User).
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return database, nil
}

// setupHistory opens the pgx pool for match history and creates its table.
func setupHistory(ctx context.Context, dbCfg dbconfig.Config) (*pgxpool.Pool, *history.Recorder, error) {
	pool, err := history.Connect(ctx, dbCfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	recorder := history.NewRecorder(pool)
	if err := recorder.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, recorder, nil
}

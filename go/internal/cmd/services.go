package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/tictactoe/go/internal/dbconfig"
	"github.com/mcdev12/tictactoe/go/internal/game/rating"
	"github.com/mcdev12/tictactoe/go/internal/invites"
	"github.com/mcdev12/tictactoe/go/internal/match/gateway"
	"github.com/mcdev12/tictactoe/go/internal/match/notify"
	"github.com/mcdev12/tictactoe/go/internal/match/orchestrator"
	"github.com/mcdev12/tictactoe/go/internal/match/service"
	"github.com/mcdev12/tictactoe/go/internal/profiles"
	profilesdb "github.com/mcdev12/tictactoe/go/internal/profiles/db"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Match        *service.Service
	Gateway      *gateway.ConnectionManager
	Invites      *invites.App

	database  *sql.DB
	pool      *pgxpool.Pool
	jetstream *notify.JetStream
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	s := &Services{}

	calc, err := rating.NewCalculator(cfg.Rating)
	if err != nil {
		return nil, fmt.Errorf("invalid rating config: %w", err)
	}

	// Profiles and history
	var (
		profileRepo profiles.ProfilesRepository = profiles.NewMemoryStore()
		opts        []orchestrator.Option
		historyRead service.HistoryReader
	)
	if cfg.Database.Enabled {
		dbCfg := dbconfig.NewConfigFromEnv()

		s.database, err = setupDatabase(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		repo := profiles.NewRepository(profilesdb.New(s.database), s.database)
		if err := repo.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		profileRepo = repo

		pool, recorder, err := setupHistory(ctx, dbCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.pool = pool
		opts = append(opts, orchestrator.WithRecorder(recorder))
		historyRead = recorder
	} else {
		log.Warn().Msg("database disabled, profiles are kept in memory")
	}
	profilesApp := profiles.NewApp(profileRepo, calc)

	// Delivery: websocket first, JetStream and the event log as extras
	s.Gateway = gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), nil)
	var extras []notify.Notifier
	if cfg.NATS.Enabled {
		s.jetstream, err = notify.NewJetStream(ctx, cfg.NATS.JetStreamConfig)
		if err != nil {
			s.Close()
			return nil, err
		}
		extras = append(extras, s.jetstream)
	}
	if getEnvAsBool("LOG_EVENTS", false) {
		extras = append(extras, notify.Log{})
	}
	notifier := notify.NewMulti(s.Gateway, extras...)

	// Match engine
	s.Orchestrator = orchestrator.New(cfg.Match, profilesApp, notifier, calc, opts...)
	s.Gateway.SetCommandHandler(s.Orchestrator)

	// Invites
	s.Invites = invites.NewApp(cfg.Invites, s.Orchestrator, nil)
	if err := s.Invites.StartPurge(); err != nil {
		s.Close()
		return nil, err
	}

	s.Match = service.NewService(s.Orchestrator, profilesApp, s.Invites, historyRead)
	return s, nil
}

// Close releases everything setupServices opened.
func (s *Services) Close() {
	if s.Invites != nil {
		if err := s.Invites.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop invite purge")
		}
	}
	if s.Orchestrator != nil {
		s.Orchestrator.Close()
	}
	if s.jetstream != nil {
		s.jetstream.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.database != nil {
		s.database.Close()
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/mcdev12/tictactoe/go/internal/game/rating"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	is := is.New(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	is.NoErr(err)
	is.Equal(cfg.Server.Port, "8080")
	is.Equal(cfg.Match.MatchWait, 5*time.Second)
	is.Equal(cfg.Match.MoveTimeout, 60*time.Second)
	is.Equal(cfg.Match.RatingWindow, 300)
	is.True(!cfg.Database.Enabled)
	is.Equal(cfg.NATS.StreamName, "MATCH_EVENTS")
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9000"
match:
  match_wait: 3s
  rating_window: 150
rating:
  base: 30
  policy:
    beat_synthetic: 0.6
    lose_to_synthetic: 0.4
    timeout_loss: 1.0
    resignation: 0.9
nats:
  enabled: true
  stream_name: GAMES
invites:
  ttl: 1h
`)
	is.NoErr(os.WriteFile(path, data, 0o600))

	t.Setenv("MOVE_TIMEOUT", "30s")
	t.Setenv("PORT", "9100")

	cfg, err := loadConfig(path)
	is.NoErr(err)
	is.Equal(cfg.Server.Port, "9100")
	is.Equal(cfg.Match.MatchWait, 3*time.Second)
	is.Equal(cfg.Match.MoveTimeout, 30*time.Second)
	is.Equal(cfg.Match.RatingWindow, 150)
	is.Equal(cfg.Rating.Base, 30)
	is.True(cfg.NATS.Enabled)
	is.Equal(cfg.NATS.StreamName, "GAMES")
	is.Equal(cfg.NATS.SubjectPrefix, "match.events")
	is.Equal(cfg.Invites.TTL, time.Hour)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	is.NoErr(os.WriteFile(path, []byte("match: ["), 0o600))

	_, err := loadConfig(path)
	is.True(err != nil)
}

func TestLoadConfigPartialRatingPolicy(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("rating:\n  policy:\n    resignation: 0.9\n")
	is.NoErr(os.WriteFile(path, data, 0o600))

	cfg, err := loadConfig(path)
	is.NoErr(err)
	is.Equal(cfg.Rating.Base, rating.DefaultBase)
	is.Equal(cfg.Rating.Policy.Resignation, 0.9)
	is.Equal(cfg.Rating.Policy.TimeoutLoss, 1.0)
	is.Equal(cfg.Rating.Policy.BeatSynthetic, 0.7)

	calc, err := rating.NewCalculator(cfg.Rating)
	is.NoErr(err)
	is.Equal(calc.TimeoutPenalty(), 25)
	is.Equal(calc.ResignationPenalty(), 22)
}

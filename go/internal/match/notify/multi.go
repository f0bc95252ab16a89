package notify

import (
	"context"

	"github.com/mcdev12/tictactoe/go/internal/match/events"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Notifier mirrors the engine's outbound interface.
type Notifier interface {
	Notify(ctx context.Context, to models.Participant, event events.Event) (string, error)
}

// Multi delivers every event to a primary notifier and any number of
// secondaries. Only the primary's handle and error are returned; secondary
// failures are logged.
type Multi struct {
	primary     Notifier
	secondaries []Notifier
}

func NewMulti(primary Notifier, secondaries ...Notifier) *Multi {
	return &Multi{primary: primary, secondaries: secondaries}
}

func (m *Multi) Notify(ctx context.Context, to models.Participant, event events.Event) (string, error) {
	handle, err := m.primary.Notify(ctx, to, event)
	for _, n := range m.secondaries {
		if _, serr := n.Notify(ctx, to, event); serr != nil {
			log.Warn().
				Err(serr).
				Str("event_id", event.ID).
				Str("participant", to.String()).
				Msg("secondary notifier failed")
		}
	}
	return handle, err
}

// Log writes every event to the global logger. It stands in when no other
// transport is configured.
type Log struct{}

func (Log) Notify(_ context.Context, to models.Participant, event events.Event) (string, error) {
	log.Info().
		Str("participant", to.String()).
		Str("session_id", event.SessionID).
		Str("event_type", string(event.Type)).
		RawJSON("data", event.Data).
		Msg("match event")
	if event.Handle != "" {
		return event.Handle, nil
	}
	return event.ID, nil
}

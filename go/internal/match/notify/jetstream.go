package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mcdev12/tictactoe/go/internal/match/events"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// syntheticSubject replaces the participant id in subjects for the synthetic
// opponent. The engine never notifies it, but subjects must stay valid.
const syntheticSubject = "synthetic"

type JetStreamConfig struct {
	URL             string        `yaml:"url"`
	StreamName      string        `yaml:"stream_name"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	MaxReconnects   int           `yaml:"max_reconnects"`
	ReconnectWait   time.Duration `yaml:"reconnect_wait"`
	MaxAge          time.Duration `yaml:"max_age"`
	Replicas        int           `yaml:"replicas"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
	PublishAttempts uint          `yaml:"publish_attempts"`
	PublishDelay    time.Duration `yaml:"publish_delay"`
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "MATCH_EVENTS",
		SubjectPrefix:   "match.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		PublishAttempts: 3,
		PublishDelay:    100 * time.Millisecond,
	}
}

// msgPublisher is the part of jetstream.JetStream the notifier publishes with.
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStream publishes match events to a JetStream stream, one subject per
// participant and event type. The returned handle is the stream sequence.
type JetStream struct {
	nc     *nats.Conn
	js     msgPublisher
	config JetStreamConfig
}

// NewJetStream connects to NATS and makes sure the stream exists.
func NewJetStream(ctx context.Context, cfg JetStreamConfig) (*JetStream, error) {
	opts := []nats.Option{
		nats.Name("tictactoe-match"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &JetStream{nc: nc, js: js, config: cfg}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Match session events per participant",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.CreateOrUpdateStream(ctx, sc)
	if err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().
		Str("stream", stream.CachedInfo().Config.Name).
		Strs("subjects", sc.Subjects).
		Msg("JetStream stream ready")
	return nil
}

// Subject returns the subject an event for to is published on.
func (p *JetStream) Subject(to models.Participant, eventType events.EventType) string {
	id := to.ID()
	if to.IsSynthetic() {
		id = syntheticSubject
	}
	return fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, id, eventType)
}

// Notify publishes event for to, retrying transient failures.
func (p *JetStream) Notify(ctx context.Context, to models.Participant, event events.Event) (string, error) {
	subject := p.Subject(to, event.Type)
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type":  []string{string(event.Type)},
			"Event-ID":    []string{event.ID},
			"Session-ID":  []string{event.SessionID},
			"Participant": []string{to.ID()},
		},
	}

	ack, err := retry.DoWithData(
		func() (*jetstream.PubAck, error) {
			return p.js.PublishMsg(ctx, msg,
				jetstream.WithMsgID(event.ID),
				jetstream.WithExpectStream(p.config.StreamName),
			)
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts()),
		retry.Delay(p.config.PublishDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("subject", subject).Msg("retrying publish")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")

	if event.Handle != "" {
		return event.Handle, nil
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

func (p *JetStream) attempts() uint {
	if p.config.PublishAttempts == 0 {
		return 1
	}
	return p.config.PublishAttempts
}

func (p *JetStream) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

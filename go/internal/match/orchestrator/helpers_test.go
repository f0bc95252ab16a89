package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tictactoe/go/internal/game/opponent"
	"github.com/mcdev12/tictactoe/go/internal/game/rating"
	"github.com/mcdev12/tictactoe/go/internal/match/events"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeClock interface {
	Clock
	Advance(d time.Duration)
}

type memStore struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
}

func newMemStore(profiles ...models.Profile) *memStore {
	m := &memStore{profiles: make(map[string]models.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *memStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memStore) SaveProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) get(t *testing.T, id string) models.Profile {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	require.True(t, ok, "profile %s", id)
	return p
}

func (m *memStore) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
}

type captureNotifier struct {
	mu     sync.Mutex
	n      int
	events map[string][]events.Event
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{events: make(map[string][]events.Event)}
}

func (c *captureNotifier) Notify(_ context.Context, to models.Participant, ev events.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	c.events[to.ID()] = append(c.events[to.ID()], ev)
	if ev.Type == events.EventTypeSessionStarted {
		return fmt.Sprintf("msg-%d", c.n), nil
	}
	return ev.Handle, nil
}

func (c *captureNotifier) ofType(id string, typ events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events[id] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *captureNotifier) ended(t *testing.T, id string) events.SessionEndedPayload {
	t.Helper()
	evs := c.ofType(id, events.EventTypeSessionEnded)
	require.Len(t, evs, 1)
	payload, err := events.ParsePayload(evs[0])
	require.NoError(t, err)
	return payload.(events.SessionEndedPayload)
}

type captureRecorder struct {
	mu      sync.Mutex
	matches []models.MatchRecord
}

func (r *captureRecorder) RecordMatch(_ context.Context, m models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, m)
	return nil
}

func (r *captureRecorder) all() []models.MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MatchRecord(nil), r.matches...)
}

// zeroRand always picks the first option and never reorders.
type zeroRand struct{}

func (zeroRand) Intn(int) int                 { return 0 }
func (zeroRand) Shuffle(int, func(i, j int)) {}

type harness struct {
	o        *Orchestrator
	store    *memStore
	notifier *captureNotifier
	recorder *captureRecorder
	clock    fakeClock
}

func profile(id string, rating int) models.Profile {
	return models.Profile{ID: id, Username: "user-" + id, Rating: rating}
}

func newHarness(t *testing.T, cfg Config, tier opponent.Tier, profiles ...models.Profile) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(profiles...),
		notifier: newCaptureNotifier(),
		recorder: &captureRecorder{},
		clock:    clockwork.NewFakeClock(),
	}
	h.o = New(cfg, h.store, h.notifier, rating.NewDefaultCalculator(),
		WithClock(h.clock),
		WithRand(zeroRand{}),
		WithResolver(opponent.FixedResolver(tier)),
		WithRecorder(h.recorder),
	)
	t.Cleanup(h.o.Close)
	return h
}

// testConfig applies the synthetic opponent's moves inline.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SyntheticDelay = 0
	return cfg
}

func (h *harness) waitSession(t *testing.T, p models.Participant) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		var ok bool
		snap, ok = h.o.SessionOf(p)
		return ok
	}, time.Second, 5*time.Millisecond)
	return snap
}

func (h *harness) waitClosed(t *testing.T, ps ...models.Participant) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, p := range ps {
			if _, ok := h.o.SessionOf(p); ok {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

// pair queues a then b so that a resolves first and moves first.
func (h *harness) pair(t *testing.T, a, b models.Participant) Snapshot {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.o.RequestMatch(ctx, a))
	h.clock.Advance(time.Second)
	require.NoError(t, h.o.RequestMatch(ctx, b))
	h.clock.Advance(4 * time.Second)
	snap := h.waitSession(t, a)
	require.Equal(t, a, snap.First)
	require.Equal(t, b, snap.Second)
	return snap
}

func (h *harness) play(t *testing.T, moves ...any) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < len(moves); i += 3 {
		p := moves[i].(models.Participant)
		require.NoError(t, h.o.SubmitMove(ctx, p, moves[i+1].(int), moves[i+2].(int)), "move %d", i/3)
	}
}

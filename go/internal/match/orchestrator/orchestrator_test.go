package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/tictactoe/go/internal/game/opponent"
	"github.com/mcdev12/tictactoe/go/internal/match/events"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Human("alice")
	bob   = models.Human("bob")
	carol = models.Human("carol")
)

func TestQueuePairsCompatibleRatings(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 150))

	snap := h.pair(t, alice, bob)
	assert.True(t, snap.Rated)
	assert.False(t, snap.VsSynthetic)
	assert.Equal(t, 0, h.o.QueueLen())
	assert.False(t, h.o.IsQueued(alice))
	assert.False(t, h.o.IsQueued(bob))
	assert.Equal(t, 1, h.o.LiveSessions())

	snapB, ok := h.o.SessionOf(bob)
	require.True(t, ok)
	assert.Equal(t, snap.ID, snapB.ID)

	// bob's own resolution must not create a second session.
	h.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.o.LiveSessions())
}

func TestQueueFallsBackToSynthetic(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("carol", 100))

	require.NoError(t, h.o.RequestMatch(context.Background(), carol))
	h.clock.Advance(5 * time.Second)

	snap := h.waitSession(t, carol)
	assert.True(t, snap.Rated)
	assert.True(t, snap.VsSynthetic)
	assert.Equal(t, carol, snap.First)
	assert.Equal(t, models.Synthetic, snap.Second)
	assert.Equal(t, "AlexPlayer", snap.SecondName)
	assert.Equal(t, 0, h.o.QueueLen())

	started := h.notifier.ofType("carol", events.EventTypeSessionStarted)
	require.Len(t, started, 1)
	payload, err := events.ParsePayload(started[0])
	require.NoError(t, err)
	sp := payload.(events.SessionStartedPayload)
	assert.True(t, sp.Opponent.Synthetic)
	assert.True(t, sp.YourTurn)
	assert.Equal(t, "X", sp.Mark)
}

func TestQueueDoesNotPairDistantRatings(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 401))
	ctx := context.Background()

	require.NoError(t, h.o.RequestMatch(ctx, alice))
	h.clock.Advance(time.Second)
	require.NoError(t, h.o.RequestMatch(ctx, bob))
	h.clock.Advance(4 * time.Second)

	snap := h.waitSession(t, alice)
	assert.True(t, snap.VsSynthetic)
	assert.True(t, h.o.IsQueued(bob))

	h.clock.Advance(time.Second)
	snap = h.waitSession(t, bob)
	assert.True(t, snap.VsSynthetic)
	assert.Equal(t, 2, h.o.LiveSessions())
}

func TestRequestMatchRejections(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	ctx := context.Background()

	err := h.o.RequestMatch(ctx, carol)
	assert.True(t, errors.Is(err, ErrProfileUnavailable))
	assert.Equal(t, 0, h.o.QueueLen())

	require.NoError(t, h.o.RequestMatch(ctx, alice))
	err = h.o.RequestMatch(ctx, alice)
	assert.True(t, errors.Is(err, ErrAlreadyQueued))
	assert.Equal(t, 1, h.o.QueueLen())

	h.clock.Advance(5 * time.Second)
	h.waitSession(t, alice)

	err = h.o.RequestMatch(ctx, alice)
	assert.True(t, errors.Is(err, ErrAlreadyInSession))

	err = h.o.RequestMatch(ctx, models.Synthetic)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidParticipant, kind)
}

func TestCancelBeforeResolution(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100))
	ctx := context.Background()

	require.NoError(t, h.o.RequestMatch(ctx, alice))
	require.NoError(t, h.o.CancelMatchRequest(ctx, alice))
	require.NoError(t, h.o.CancelMatchRequest(ctx, alice))

	h.clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	_, ok := h.o.SessionOf(alice)
	assert.False(t, ok)
	assert.Equal(t, 0, h.o.QueueLen())
}

func TestCancelledThenRequeuedUsesFreshWindow(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100))
	ctx := context.Background()

	require.NoError(t, h.o.RequestMatch(ctx, alice))
	h.clock.Advance(3 * time.Second)
	require.NoError(t, h.o.CancelMatchRequest(ctx, alice))
	require.NoError(t, h.o.RequestMatch(ctx, alice))

	h.clock.Advance(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, h.o.IsQueued(alice))

	h.clock.Advance(2 * time.Second)
	h.waitSession(t, alice)
}

func TestSubmitMoveRejections(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	ctx := context.Background()
	h.pair(t, alice, bob)

	err := h.o.SubmitMove(ctx, bob, 0, 0)
	assert.True(t, errors.Is(err, ErrNotYourTurn))
	snap, _ := h.o.SessionOf(alice)
	assert.Equal(t, []string{"...", "...", "..."}, snap.Board)

	require.NoError(t, h.o.SubmitMove(ctx, alice, 1, 1))

	err = h.o.SubmitMove(ctx, bob, 1, 1)
	assert.True(t, errors.Is(err, ErrCellOccupied))
	err = h.o.SubmitMove(ctx, bob, 3, 0)
	assert.True(t, errors.Is(err, ErrInvalidCoordinates))

	snap, _ = h.o.SessionOf(bob)
	assert.Equal(t, []string{"...", ".X.", "..."}, snap.Board)
	assert.Equal(t, bob, snap.Turn)

	err = h.o.SubmitMove(ctx, carol, 0, 0)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	err = h.o.Resign(ctx, carol)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestTurnsAlternateAndBoardUpdates(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)

	h.play(t, alice, 0, 0, bob, 1, 1)
	snap, _ := h.o.SessionOf(alice)
	assert.Equal(t, alice, snap.Turn)
	assert.Equal(t, 2, snap.MoveCount)

	updates := h.notifier.ofType("bob", events.EventTypeBoardUpdated)
	require.Len(t, updates, 2)
	payload, err := events.ParsePayload(updates[1])
	require.NoError(t, err)
	bu := payload.(events.BoardUpdatedPayload)
	assert.Equal(t, []string{"X..", ".O.", "..."}, bu.Board)
	assert.Equal(t, events.Move{Row: 1, Col: 1, Mark: "O"}, bu.LastMove)
	assert.False(t, bu.YourTurn)
	assert.Equal(t, 2, bu.MoveNumber)
}

func TestHandlesAttachedToLaterEvents(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)
	h.play(t, alice, 0, 0)

	started := h.notifier.ofType("alice", events.EventTypeSessionStarted)
	require.Len(t, started, 1)
	assert.Empty(t, started[0].Handle)

	updates := h.notifier.ofType("alice", events.EventTypeBoardUpdated)
	require.Len(t, updates, 1)
	assert.NotEmpty(t, updates[0].Handle)

	bobUpdates := h.notifier.ofType("bob", events.EventTypeBoardUpdated)
	require.Len(t, bobUpdates, 1)
	assert.NotEqual(t, updates[0].Handle, bobUpdates[0].Handle)
}

func TestRatedWinUsesTieredChange(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)

	h.play(t,
		alice, 0, 0, bob, 1, 0,
		alice, 0, 1, bob, 1, 1,
		alice, 0, 2,
	)
	h.waitClosed(t, alice, bob)

	a := h.store.get(t, "alice")
	b := h.store.get(t, "bob")
	assert.Equal(t, 132, a.Rating)
	assert.Equal(t, 83, b.Rating)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, b.Losses)
	assert.Equal(t, 1, a.GamesPlayed)
	assert.Equal(t, 1, b.GamesPlayed)

	ae := h.notifier.ended(t, "alice")
	assert.Equal(t, events.OutcomeWin, ae.Outcome)
	assert.Equal(t, events.ReasonLine, ae.Reason)
	assert.Equal(t, 32, ae.RatingDelta)
	assert.Equal(t, 132, ae.NewRating)
	be := h.notifier.ended(t, "bob")
	assert.Equal(t, -17, be.RatingDelta)

	err := h.o.SubmitMove(context.Background(), bob, 2, 2)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.Equal(t, 0, h.o.LiveSessions())

	recs := h.recorder.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "alice", recs[0].WinnerID)
	assert.Equal(t, 32, recs[0].FirstDelta)
	assert.Equal(t, -17, recs[0].SecondDelta)
	assert.Len(t, recs[0].Moves, 5)
}

func TestDrawLeavesRatingsUnchanged(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)

	// X O X / X O O / O X X
	h.play(t,
		alice, 0, 0, bob, 0, 1,
		alice, 0, 2, bob, 1, 1,
		alice, 1, 0, bob, 1, 2,
		alice, 2, 1, bob, 2, 0,
		alice, 2, 2,
	)
	h.waitClosed(t, alice, bob)

	a := h.store.get(t, "alice")
	b := h.store.get(t, "bob")
	assert.Equal(t, 100, a.Rating)
	assert.Equal(t, 100, b.Rating)
	assert.Equal(t, 1, a.Draws)
	assert.Equal(t, 1, b.Draws)
	assert.Equal(t, events.OutcomeDraw, h.notifier.ended(t, "alice").Outcome)
	assert.Equal(t, events.ReasonDraw, h.notifier.ended(t, "bob").Reason)
}

func TestTimeoutPenalisesTurnHolder(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)

	s, ok := h.o.registry.ByParticipant(alice)
	require.True(t, ok)
	require.True(t, h.o.sched.Pending(watchdogKey(s)))

	h.clock.Advance(60 * time.Second)
	h.waitClosed(t, alice, bob)
	assert.False(t, h.o.sched.Pending(watchdogKey(s)))

	a := h.store.get(t, "alice")
	b := h.store.get(t, "bob")
	assert.Equal(t, 75, a.Rating)
	assert.Equal(t, 1, a.Losses)
	assert.Equal(t, 100, b.Rating)
	assert.Equal(t, 1, b.Wins)

	ae := h.notifier.ended(t, "alice")
	assert.Equal(t, events.ReasonTimeout, ae.Reason)
	assert.Equal(t, -25, ae.RatingDelta)
	assert.Equal(t, 0, h.notifier.ended(t, "bob").RatingDelta)
}

func TestMoveRearmsWatchdog(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)

	s, ok := h.o.registry.ByParticipant(alice)
	require.True(t, ok)

	h.clock.Advance(59 * time.Second)
	h.play(t, alice, 1, 1)
	require.True(t, h.o.sched.Pending(watchdogKey(s)))

	h.clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	_, ok = h.o.SessionOf(alice)
	require.True(t, ok, "stale watchdog must not settle the session")
	require.True(t, h.o.sched.Pending(watchdogKey(s)))

	h.clock.Advance(58 * time.Second)
	h.waitClosed(t, alice, bob)
	assert.Equal(t, 75, h.store.get(t, "bob").Rating)
	assert.Equal(t, 100, h.store.get(t, "alice").Rating)
}

func TestStaleWatchdogFiringIsIgnored(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)

	s, ok := h.o.registry.ByParticipant(alice)
	require.True(t, ok)
	s.mu.Lock()
	armed := s.moveSeq
	s.mu.Unlock()

	h.play(t, alice, 0, 0)
	h.o.timeoutElapsed(s, armed)

	_, ok = h.o.SessionOf(alice)
	assert.True(t, ok)
}

func TestResignation(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	h.pair(t, alice, bob)
	h.play(t, alice, 1, 1)

	require.NoError(t, h.o.Resign(context.Background(), alice))
	h.waitClosed(t, alice, bob)

	a := h.store.get(t, "alice")
	b := h.store.get(t, "bob")
	assert.Equal(t, 80, a.Rating)
	assert.Equal(t, 1, a.Losses)
	assert.Equal(t, 100, b.Rating)
	assert.Equal(t, 1, b.Wins)
	assert.Equal(t, events.ReasonResign, h.notifier.ended(t, "bob").Reason)

	err := h.o.Resign(context.Background(), alice)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestHumanBeatsSynthetic(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("carol", 100))
	require.NoError(t, h.o.RequestMatch(context.Background(), carol))
	h.clock.Advance(5 * time.Second)
	h.waitSession(t, carol)

	// The minimal opponent with zeroRand takes the first empty cell.
	h.play(t, carol, 1, 1)
	snap, _ := h.o.SessionOf(carol)
	assert.Equal(t, []string{"O..", ".X.", "..."}, snap.Board)
	h.play(t, carol, 0, 1)
	h.play(t, carol, 2, 1)
	h.waitClosed(t, carol)

	c := h.store.get(t, "carol")
	assert.Equal(t, 117, c.Rating)
	assert.Equal(t, 1, c.Wins)
	assert.Equal(t, 17, h.notifier.ended(t, "carol").RatingDelta)
}

func TestSyntheticBeatsHuman(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Strong, profile("carol", 100))
	require.NoError(t, h.o.RequestMatch(context.Background(), carol))
	h.clock.Advance(5 * time.Second)
	h.waitSession(t, carol)

	h.play(t, carol, 0, 0, carol, 0, 1, carol, 1, 0)
	h.waitClosed(t, carol)

	c := h.store.get(t, "carol")
	assert.Equal(t, 88, c.Rating)
	assert.Equal(t, 1, c.Losses)
	ended := h.notifier.ended(t, "carol")
	assert.Equal(t, events.OutcomeLoss, ended.Outcome)
	assert.Equal(t, []string{"XXO", "XO.", "O.."}, ended.Board)
}

func TestSyntheticDelayIsScheduled(t *testing.T) {
	cfg := testConfig()
	cfg.SyntheticDelay = time.Second
	h := newHarness(t, cfg, opponent.Minimal, profile("carol", 100))
	ctx := context.Background()

	require.NoError(t, h.o.RequestMatch(ctx, carol))
	h.clock.Advance(5 * time.Second)
	h.waitSession(t, carol)

	require.NoError(t, h.o.SubmitMove(ctx, carol, 1, 1))
	err := h.o.SubmitMove(ctx, carol, 2, 2)
	assert.True(t, errors.Is(err, ErrNotYourTurn))

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		snap, ok := h.o.SessionOf(carol)
		return ok && snap.Turn == carol
	}, time.Second, 5*time.Millisecond)
	snap, _ := h.o.SessionOf(carol)
	assert.Equal(t, []string{"O..", ".X.", "..."}, snap.Board)
}

func TestDirectChallengeIsUnrated(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	ctx := context.Background()

	require.NoError(t, h.o.AcceptDirectChallenge(ctx, alice, bob))
	snap, ok := h.o.SessionOf(bob)
	require.True(t, ok)
	assert.False(t, snap.Rated)
	assert.Equal(t, alice, snap.First)

	err := h.o.AcceptDirectChallenge(ctx, alice, bob)
	assert.True(t, errors.Is(err, ErrAlreadyInSession))

	h.play(t,
		alice, 0, 0, bob, 1, 0,
		alice, 0, 1, bob, 1, 1,
		alice, 0, 2,
	)
	h.waitClosed(t, alice, bob)

	a := h.store.get(t, "alice")
	b := h.store.get(t, "bob")
	assert.Equal(t, 100, a.Rating)
	assert.Equal(t, 100, b.Rating)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, b.Losses)
	assert.Equal(t, 0, h.notifier.ended(t, "alice").RatingDelta)
}

func TestDirectChallengeRejections(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	ctx := context.Background()

	err := h.o.AcceptDirectChallenge(ctx, alice, alice)
	assert.True(t, errors.Is(err, ErrInvalidParticipant))

	err = h.o.AcceptDirectChallenge(ctx, alice, carol)
	assert.True(t, errors.Is(err, ErrProfileUnavailable))

	require.NoError(t, h.o.RequestMatch(ctx, bob))
	err = h.o.AcceptDirectChallenge(ctx, alice, bob)
	assert.True(t, errors.Is(err, ErrAlreadyQueued))
	assert.Equal(t, 0, h.o.LiveSessions())
}

func TestMissingProfileAtSettlement(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 700), profile("bob", 600))
	h.pair(t, alice, bob)
	h.store.delete("bob")

	h.play(t,
		alice, 0, 0, bob, 1, 0,
		alice, 0, 1, bob, 1, 1,
		alice, 0, 2,
	)
	h.waitClosed(t, alice, bob)

	// bob counts as the default rating; alice (Опытный) gains 25.
	a := h.store.get(t, "alice")
	assert.Equal(t, 725, a.Rating)
	assert.Equal(t, 0, h.notifier.ended(t, "bob").RatingDelta)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	ids := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	var profiles []models.Profile
	for _, id := range ids {
		profiles = append(profiles, profile(id, 100))
	}
	h := newHarness(t, testConfig(), opponent.Minimal, profiles...)
	ctx := context.Background()

	for i := 0; i < len(ids); i += 2 {
		require.NoError(t, h.o.AcceptDirectChallenge(ctx, models.Human(ids[i]), models.Human(ids[i+1])))
	}
	require.Equal(t, 4, h.o.LiveSessions())

	var wg sync.WaitGroup
	for i := 0; i < len(ids); i += 2 {
		first, second := models.Human(ids[i]), models.Human(ids[i+1])
		wg.Add(1)
		go func() {
			defer wg.Done()
			moves := []struct {
				p        models.Participant
				row, col int
			}{
				{first, 0, 0}, {second, 1, 0}, {first, 0, 1}, {second, 1, 1}, {first, 0, 2},
			}
			for _, m := range moves {
				assert.NoError(t, h.o.SubmitMove(ctx, m.p, m.row, m.col))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.o.LiveSessions())
	for i := 0; i < len(ids); i += 2 {
		assert.Equal(t, 1, h.store.get(t, ids[i]).Wins)
		assert.Equal(t, 1, h.store.get(t, ids[i+1]).Losses)
	}
}

func TestConcurrentMovesSerialised(t *testing.T) {
	h := newHarness(t, testConfig(), opponent.Minimal, profile("alice", 100), profile("bob", 100))
	ctx := context.Background()
	require.NoError(t, h.o.AcceptDirectChallenge(ctx, alice, bob))

	var wg sync.WaitGroup
	results := make([]error, 9)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.o.SubmitMove(ctx, alice, i/3, i%3)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
			continue
		}
		assert.True(t, errors.Is(err, ErrNotYourTurn))
	}
	assert.Equal(t, 1, accepted)
}

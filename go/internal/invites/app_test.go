package invites

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type challenge struct {
	inviter, invitee models.Participant
}

type fakeChallenger struct {
	mu    sync.Mutex
	calls []challenge
	err   error
}

func (f *fakeChallenger) AcceptDirectChallenge(_ context.Context, inviter, invitee models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, challenge{inviter, invitee})
	return nil
}

func newTestApp() (*App, *fakeChallenger, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	ch := &fakeChallenger{}
	return NewApp(Config{TTL: time.Hour, PurgeInterval: time.Minute}, ch, clock), ch, clock
}

func TestCreateAndRedeem(t *testing.T) {
	app, ch, _ := newTestApp()
	ctx := context.Background()

	inv, err := app.Create(ctx, models.Human("7"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inv.Code, "invite_7_"))

	got, err := app.Redeem(ctx, inv.Code, models.Human("9"))
	require.NoError(t, err)
	assert.Equal(t, "9", got.UsedBy)

	require.Len(t, ch.calls, 1)
	assert.Equal(t, models.Human("7"), ch.calls[0].inviter)
	assert.Equal(t, models.Human("9"), ch.calls[0].invitee)

	_, err = app.Redeem(ctx, inv.Code, models.Human("10"))
	assert.ErrorIs(t, err, ErrUsed)
}

func TestRedeemRejections(t *testing.T) {
	app, ch, clock := newTestApp()
	ctx := context.Background()

	_, err := app.Redeem(ctx, "invite_nope", models.Human("1"))
	assert.ErrorIs(t, err, ErrNotFound)

	inv, err := app.Create(ctx, models.Human("1"))
	require.NoError(t, err)

	_, err = app.Redeem(ctx, inv.Code, models.Human("1"))
	assert.ErrorIs(t, err, ErrSelfInvite)

	_, err = app.Redeem(ctx, inv.Code, models.Synthetic)
	assert.ErrorIs(t, err, ErrNotHuman)

	_, err = app.Create(ctx, models.Synthetic)
	assert.ErrorIs(t, err, ErrNotHuman)

	clock.Advance(time.Hour)
	_, err = app.Redeem(ctx, inv.Code, models.Human("2"))
	assert.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, ch.calls)
}

func TestRejectedChallengeKeepsCode(t *testing.T) {
	app, ch, _ := newTestApp()
	ctx := context.Background()

	inv, err := app.Create(ctx, models.Human("1"))
	require.NoError(t, err)

	busy := errors.New("already in session")
	ch.err = busy
	_, err = app.Redeem(ctx, inv.Code, models.Human("2"))
	assert.ErrorIs(t, err, busy)

	ch.err = nil
	_, err = app.Redeem(ctx, inv.Code, models.Human("2"))
	assert.NoError(t, err)
}

func TestPurge(t *testing.T) {
	app, _, clock := newTestApp()
	ctx := context.Background()

	used, err := app.Create(ctx, models.Human("1"))
	require.NoError(t, err)
	_, err = app.Redeem(ctx, used.Code, models.Human("2"))
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	fresh, err := app.Create(ctx, models.Human("3"))
	require.NoError(t, err)
	_, err = app.Create(ctx, models.Human("4"))
	require.NoError(t, err)

	assert.Equal(t, 1, app.Purge())
	assert.Equal(t, 2, app.Len())

	clock.Advance(45 * time.Minute)
	_, err = app.Create(ctx, models.Human("5"))
	require.NoError(t, err)
	assert.Equal(t, 0, app.Purge())

	clock.Advance(time.Hour)
	assert.Equal(t, 3, app.Purge())

	_, err = app.Get(ctx, fresh.Code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartAndStopPurge(t *testing.T) {
	app, _, _ := newTestApp()
	require.NoError(t, app.StartPurge())
	assert.NoError(t, app.Stop())
	assert.NoError(t, app.Stop())
}

type blockingChallenger struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChallenger) AcceptDirectChallenge(context.Context, models.Participant, models.Participant) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestRedeemDoesNotBlockOtherInvites(t *testing.T) {
	bc := &blockingChallenger{entered: make(chan struct{}, 1), release: make(chan struct{})}
	app := NewApp(Config{TTL: time.Hour}, bc, clockwork.NewFakeClock())
	ctx := context.Background()

	inv, err := app.Create(ctx, models.Human("1"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := app.Redeem(ctx, inv.Code, models.Human("2"))
		done <- err
	}()
	<-bc.entered

	_, err = app.Create(ctx, models.Human("3"))
	require.NoError(t, err)
	assert.Equal(t, 2, app.Len())

	_, err = app.Redeem(ctx, inv.Code, models.Human("4"))
	assert.ErrorIs(t, err, ErrUsed)

	close(bc.release)
	require.NoError(t, <-done)

	got, err := app.Get(ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, "2", got.UsedBy)
}

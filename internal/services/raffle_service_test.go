package services

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter/internal/models"
	"chapter/internal/raffle"
	"chapter/internal/raffle/raffletest"
	"chapter/internal/registrations"
)

func TestMain(m *testing.M) {
	l := logger.Init("services_test", false, false, io.Discard)
	code := m.Run()
	l.Close()
	os.Exit(code)
}

type published struct {
	kind    string
	eventID string
	snap    raffle.Snapshot
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) PublishDraw(eventID string, snap raffle.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{"draw", eventID, snap})
}

func (p *fakePublisher) PublishCelebration(eventID string, snap raffle.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{"celebrate", eventID, snap})
}

func (p *fakePublisher) kinds(eventID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		if m.eventID == eventID {
			out = append(out, m.kind+":"+string(m.snap.State))
		}
	}
	return out
}

func setup(t *testing.T) (*RaffleService, *raffletest.Clock, *fakePublisher) {
	t.Helper()
	ctx := context.Background()
	store := registrations.NewMemoryStore()
	for _, p := range []models.Participant{
		{Name: "Alice", Email: "alice@example.org"},
		{Name: "Bob", Email: "bob@example.org"},
		{Name: "Carol"},
	} {
		require.NoError(t, store.Register(ctx, "gala", p))
	}

	clock := raffletest.NewClock(time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC))
	pub := &fakePublisher{}
	service := NewRaffleService(store, pub,
		raffle.WithClock(clock),
		raffle.WithRandom(raffletest.Fixed(0.5)),
		raffle.WithFollowUp(500*time.Millisecond),
	)
	return service, clock, pub
}

func TestRaffleService_Draw(t *testing.T) {
	ctx := context.Background()
	service, clock, pub := setup(t)

	t.Run("open shows the registered participants", func(t *testing.T) {
		snap, err := service.OpenDraw(ctx, "gala")
		require.NoError(t, err)
		assert.Equal(t, raffle.StateIdle, snap.State)
		assert.Len(t, snap.Participants, 3)
		assert.Equal(t, "Alice", snap.Participants[0].Name)
	})

	t.Run("start and complete", func(t *testing.T) {
		snap, err := service.StartDraw("gala")
		require.NoError(t, err)
		assert.True(t, snap.IsRunning)
		assert.Equal(t, int64(6180), snap.DurationMs)

		clock.Advance(6180 * time.Millisecond)
		done, err := service.Snapshot("gala")
		require.NoError(t, err)
		require.NotNil(t, done.Winner)
		assert.Equal(t, "Bob", done.Winner.Name)

		results := service.GetDrawResults("gala")
		require.Len(t, results, 1)
		assert.Equal(t, "Bob", results[0].WinnerName)
		assert.Equal(t, "bob@example.org", results[0].WinnerEmail)
		assert.Equal(t, 3, results[0].Participants)
		assert.Equal(t, done.DrawID, results[0].DrawID)

		clock.Advance(500 * time.Millisecond)
	})

	t.Run("busy while spinning", func(t *testing.T) {
		_, err := service.ResetDraw("gala")
		require.NoError(t, err)
		_, err = service.StartDraw("gala")
		require.NoError(t, err)

		_, err = service.StartDraw("gala")
		assert.ErrorIs(t, err, raffle.ErrDrawInProgress)
		_, err = service.ResetDraw("gala")
		assert.ErrorIs(t, err, raffle.ErrDrawInProgress)
	})

	t.Run("close mid spin reports nothing", func(t *testing.T) {
		require.NoError(t, service.CloseDraw("gala"))
		clock.Advance(time.Minute)

		assert.Len(t, service.GetDrawResults("gala"), 1)
		_, err := service.Snapshot("gala")
		assert.ErrorIs(t, err, ErrNoDraw)
		assert.ErrorIs(t, service.CloseDraw("gala"), ErrNoDraw)
	})

	assert.Equal(t, []string{
		"draw:idle",
		"draw:spinning",
		"draw:completed",
		"celebrate:completed",
		"celebrate:completed",
		"draw:idle",
		"draw:spinning",
		"draw:closed",
	}, pub.kinds("gala"))
}

func TestRaffleService_EmptyEvent(t *testing.T) {
	service, clock, _ := setup(t)

	_, err := service.OpenDraw(context.Background(), "empty-hall")
	require.NoError(t, err)
	snap, err := service.StartDraw("empty-hall")
	require.NoError(t, err)
	assert.Equal(t, raffle.StateEmpty, snap.State)
	assert.Zero(t, clock.Pending())
	assert.Empty(t, service.GetDrawResults("empty-hall"))
}

func TestRaffleService_NoDialog(t *testing.T) {
	service, _, _ := setup(t)

	_, err := service.StartDraw("gala")
	assert.ErrorIs(t, err, ErrNoDraw)
	_, err = service.ResetDraw("gala")
	assert.ErrorIs(t, err, ErrNoDraw)
}

func TestRaffleService_ReopenReplacesDialog(t *testing.T) {
	ctx := context.Background()
	service, clock, pub := setup(t)

	_, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	_, err = service.StartDraw("gala")
	require.NoError(t, err)

	snap, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	assert.Equal(t, raffle.StateIdle, snap.State)

	clock.Advance(time.Minute)
	assert.Empty(t, service.GetDrawResults("gala"), "the replaced spin must never complete")
	assert.Equal(t, []string{"draw:idle", "draw:spinning", "draw:idle"}, pub.kinds("gala"))
}

func TestRaffleService_CleanUpInactiveSessions(t *testing.T) {
	ctx := context.Background()
	service, clock, pub := setup(t)

	_, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	_, err = service.StartDraw("gala")
	require.NoError(t, err)

	assert.Zero(t, service.CleanUpInactiveSessions(time.Hour))

	service.mu.Lock()
	service.sessions["gala"].LastActivity = time.Now().Add(-2 * time.Hour)
	service.mu.Unlock()

	assert.Equal(t, 1, service.CleanUpInactiveSessions(time.Hour))
	assert.Zero(t, clock.Pending())
	_, err = service.Snapshot("gala")
	assert.ErrorIs(t, err, ErrNoDraw)
	assert.Equal(t, []string{"draw:idle", "draw:spinning", "draw:closed"}, pub.kinds("gala"))
}

func TestRaffleService_ClearSession(t *testing.T) {
	ctx := context.Background()
	service, clock, pub := setup(t)

	_, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	_, err = service.StartDraw("gala")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	require.Len(t, service.GetDrawResults("gala"), 1)

	service.ClearSession("gala")
	assert.Empty(t, service.GetDrawResults("gala"))
	_, err = service.Snapshot("gala")
	assert.ErrorIs(t, err, ErrNoDraw)
	assert.Equal(t, "draw:closed", last(pub.kinds("gala")))
}

func TestRaffleService_ShutdownTellsEveryEvent(t *testing.T) {
	ctx := context.Background()
	service, _, pub := setup(t)

	_, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	_, err = service.OpenDraw(ctx, "picnic")
	require.NoError(t, err)

	service.Shutdown()
	assert.Equal(t, []string{"draw:idle", "draw:closed"}, pub.kinds("gala"))
	assert.Equal(t, []string{"draw:idle", "draw:closed"}, pub.kinds("picnic"))
}

func TestRaffleService_CloseAfterReopenKeepsNewDialog(t *testing.T) {
	ctx := context.Background()
	service, _, pub := setup(t)

	_, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	service.mu.Lock()
	stale := service.sessions["gala"]
	delete(service.sessions, "gala")
	service.mu.Unlock()

	_, err = service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	service.closeSession(stale)

	assert.Equal(t, []string{"draw:idle", "draw:idle"}, pub.kinds("gala"))
}

func TestRaffleService_Announce(t *testing.T) {
	ctx := context.Background()
	service, clock, pub := setup(t)

	service.Announce("gala")
	assert.Equal(t, []string{"draw:closed"}, pub.kinds("gala"), "no dialog yet")

	_, err := service.OpenDraw(ctx, "gala")
	require.NoError(t, err)
	_, err = service.StartDraw("gala")
	require.NoError(t, err)
	service.Announce("gala")
	assert.Equal(t, "draw:spinning", last(pub.kinds("gala")))

	clock.Advance(time.Minute)
	service.Announce("gala")
	assert.Equal(t, "draw:completed", last(pub.kinds("gala")))
	assert.Len(t, service.GetDrawResults("gala"), 1, "announcing must not record another result")
}

func last(kinds []string) string {
	if len(kinds) == 0 {
		return ""
	}
	return kinds[len(kinds)-1]
}

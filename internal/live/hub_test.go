package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter/internal/models"
	"chapter/internal/raffle"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventID := r.URL.Query().Get("event")
		_ = hub.Serve(w, r, eventID, func() {
			hub.PublishDraw(eventID, raffle.Snapshot{State: raffle.StateIdle, WinnerIndex: -1})
		})
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, eventID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?event=" + eventID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestHub_InitialSnapshotThenUpdates(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "gala")

	first := read(t, conn)
	assert.Equal(t, TypeDraw, first.Type)
	assert.Equal(t, "gala", first.EventID)
	assert.Equal(t, raffle.StateIdle, first.Draw.State)

	winner := models.Participant{Name: "Bob"}
	hub.PublishDraw("gala", raffle.Snapshot{State: raffle.StateCompleted, Winner: &winner, WinnerIndex: 1})
	hub.PublishCelebration("gala", raffle.Snapshot{State: raffle.StateCompleted, Winner: &winner, WinnerIndex: 1})

	m := read(t, conn)
	assert.Equal(t, TypeDraw, m.Type)
	require.NotNil(t, m.Draw.Winner)
	assert.Equal(t, "Bob", m.Draw.Winner.Name)

	m = read(t, conn)
	assert.Equal(t, TypeCelebrate, m.Type)
}

func TestHub_EventsAreIsolated(t *testing.T) {
	hub, srv := startHub(t)
	gala := dial(t, srv, "gala")
	picnic := dial(t, srv, "picnic")
	read(t, gala)
	read(t, picnic)

	hub.PublishDraw("picnic", raffle.Snapshot{State: raffle.StateSpinning, WinnerIndex: -1})
	hub.PublishDraw("gala", raffle.Snapshot{State: raffle.StateEmpty, WinnerIndex: -1})

	assert.Equal(t, raffle.StateSpinning, read(t, picnic).Draw.State)
	assert.Equal(t, raffle.StateEmpty, read(t, gala).Draw.State)
}

func TestHub_ReadyRunsAfterRegistration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	winner := models.Participant{Name: "Bob"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "gala", func() {
			hub.PublishDraw("gala", raffle.Snapshot{State: raffle.StateSpinning, WinnerIndex: -1})
			hub.PublishDraw("gala", raffle.Snapshot{State: raffle.StateCompleted, Winner: &winner, WinnerIndex: 1})
		})
	}))
	defer srv.Close()

	conn := dial(t, srv, "gala")
	assert.Equal(t, raffle.StateSpinning, read(t, conn).Draw.State)
	done := read(t, conn)
	assert.Equal(t, raffle.StateCompleted, done.Draw.State)
	require.NotNil(t, done.Draw.Winner)
	assert.Equal(t, "Bob", done.Draw.Winner.Name)
}

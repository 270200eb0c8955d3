// Package live pushes draw updates to the pages watching an event.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/logger"
	"github.com/gorilla/websocket"

	"chapter/internal/raffle"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	outgoingBuffer = 16
)

// Message types sent to clients.
const (
	TypeDraw      = "draw"
	TypeCelebrate = "celebrate"
)

// Message is one update for the pages of an event.
type Message struct {
	Type    string          `json:"type"`
	EventID string          `json:"eventId"`
	Draw    raffle.Snapshot `json:"draw"`
}

// Client is one websocket connection watching an event.
type Client struct {
	Hub     *Hub
	EventID string
	Conn    *websocket.Conn

	Outgoing chan []byte
}

// Hub fans messages out to the clients of each event. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	Clients map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Message

	upgrader websocket.Upgrader
	done     chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.Clients {
				for c := range clients {
					close(c.Outgoing)
				}
			}
			h.Clients = make(map[string]map[*Client]bool)
			return

		case c := <-h.Register:
			if h.Clients[c.EventID] == nil {
				h.Clients[c.EventID] = make(map[*Client]bool)
			}
			h.Clients[c.EventID][c] = true

		case c := <-h.Unregister:
			h.remove(c)

		case m := <-h.Broadcast:
			b, err := json.Marshal(m)
			if err != nil {
				logger.Errorf("live: encode %s message for %s: %v", m.Type, m.EventID, err)
				continue
			}
			for c := range h.Clients[m.EventID] {
				select {
				case c.Outgoing <- b:
				default:
					logger.Warningf("live: dropping slow client of event %s", m.EventID)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	clients := h.Clients[c.EventID]
	if !clients[c] {
		return
	}
	delete(clients, c)
	close(c.Outgoing)
	if len(clients) == 0 {
		delete(h.Clients, c.EventID)
	}
}

// PublishDraw sends a draw snapshot to the event's clients.
func (h *Hub) PublishDraw(eventID string, snap raffle.Snapshot) {
	h.publish(Message{Type: TypeDraw, EventID: eventID, Draw: snap})
}

// PublishCelebration tells the event's clients to fire the confetti.
func (h *Hub) PublishCelebration(eventID string, snap raffle.Snapshot) {
	h.publish(Message{Type: TypeCelebrate, EventID: eventID, Draw: snap})
}

func (h *Hub) publish(m Message) {
	select {
	case h.Broadcast <- m:
	case <-h.done:
	}
}

// Serve upgrades the request and pumps messages until the connection or the
// hub goes away. ready runs once the client is registered; it should publish
// the event's current state so nothing sent in between is missed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, eventID string, ready func()) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{Hub: h, EventID: eventID, Conn: conn, Outgoing: make(chan []byte, outgoingBuffer)}
	select {
	case h.Register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}

	go c.writePump()
	if ready != nil {
		ready()
	}
	c.readPump()
	return nil
}

// readPump discards incoming frames; it exists to notice the peer leaving.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Infof("live: client of event %s: %v", c.EventID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Outgoing:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

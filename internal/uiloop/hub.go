package uiloop

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
	"github.com/roasbeef/rotorgo/internal/rotorlog"
)

var log = rotorlog.GetLogger("uiloop")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Event message types broadcast to connected clients.
const (
	EventTransition = "lifecycle_transition"
	EventSpawn      = "spawn"
	EventConnected  = "connected"
)

// Event is one JSON-encoded record streamed to every connected browser.
type Event struct {
	Type       string    `json:"type"`
	Actor      string    `json:"actor,omitempty"`
	Parent     string    `json:"parent,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	ReasonCode string    `json:"reason_code,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Time       time.Time `json:"time"`
}

// Hub fans lifecycle events out to every connected websocket client. It
// implements internal/baselib/actor.Journal directly, so installing a Hub
// as a Supervisor's Journal streams that supervisor's children's
// transitions live; it keeps no durable history of its own (pair with
// internal/journal.Store for that).
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// RecordTransition implements actor.Journal.
func (h *Hub) RecordTransition(_ context.Context, actorLabel string,
	from, to actor.ActorState, reason *actor.ExtendedError) {

	ev := Event{
		Type:  EventTransition,
		Actor: actorLabel,
		From:  from.String(),
		To:    to.String(),
		Time:  time.Now().UTC(),
	}
	if reason != nil {
		ev.ReasonCode = string(reason.Code())
		ev.Reason = reason.Error()
	}
	h.broadcast(&ev)
}

// RecordSpawn implements actor.Journal.
func (h *Hub) RecordSpawn(_ context.Context, parent, child string,
	policy actor.ChildPolicy) {

	h.broadcast(&Event{
		Type:   EventSpawn,
		Parent: parent,
		Actor:  child,
		Time:   time.Now().UTC(),
	})
}

func (h *Hub) broadcast(ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		c.send(ev)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket connection and streams
// every subsequent lifecycle event to it until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnS(r.Context(), "uiloop: websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, out: make(chan *Event, sendBufferSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	c.send(&Event{Type: EventConnected, Time: time.Now().UTC()})

	go c.writePump()
	c.readPump(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	})
}

// client is one connected browser's websocket connection and outbound
// event buffer.
type client struct {
	conn   *websocket.Conn
	out    chan *Event
	closed sync.Once
}

func (c *client) send(ev *Event) {
	select {
	case c.out <- ev:
	default:
		log.WarnS(context.Background(), "uiloop: client send buffer full, dropping event")
	}
}

func (c *client) close() {
	c.closed.Do(func() {
		close(c.out)
		c.conn.Close()
	})
}

func (c *client) readPump(onClose func()) {
	// onClose removes c from the hub's client map under the hub's lock
	// before close() tears down the send channel, so a broadcast that is
	// mid-iteration never sends on an already-closed channel.
	defer c.close()
	defer onClose()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case ev, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.WarnS(context.Background(), "uiloop: marshal error", "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ actor.Journal = (*Hub)(nil)

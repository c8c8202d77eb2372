package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 45 * time.Second
	sendBuf      = 32
)

// Message is the frame pushed to every connected viewer. Data carries the full
// hydrated order; clients filter by id/role on their side.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub is a connection registry with global fan-out. Register/unregister and
// broadcast are the only operations; there is no per-order subscription.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the Vite dev server and the
			// production origin; the API itself is origin-agnostic.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: map[*conn]struct{}{},
	}
}

// Broadcast marshals once and offers the frame to every connection. A client
// whose send buffer is full is dropped; it re-syncs through the poll path when
// it reconnects.
//
// Sends and closes on a conn's send channel both happen under h.mu, so a
// concurrent drop can never close the channel between the snapshot and the
// send. The sends are non-blocking against buffered channels, so holding the
// lock across the fan-out is cheap.
func (h *Hub) Broadcast(event string, data any) {
	b, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Printf("ws marshal: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- b:
		default:
			delete(h.conns, c)
			c.close()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and runs the connection pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}
	c := &conn{sock: sock, send: make(chan []byte, sendBuf)}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump() // blocks until the peer goes away
	h.drop(c)
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		c.close()
	}
}

// Close tears down every connection, for shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		delete(h.conns, c)
		c.close()
	}
}

package devserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Message is what browsers receive over the live-reload socket.
type Message struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(m)
}

// Hub tracks the browsers connected to one dev server.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Live-reload upgrade failed.", "error", err)
		return
	}
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Browser connected.", "remote", r.RemoteAddr)

	defer h.drop(c)
	for {
		// Browsers never send anything; reading detects the close.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Reload asks every browser to reload the page.
func (h *Hub) Reload() {
	h.broadcast(Message{Type: "reload"})
}

// InjectCSS asks every browser to refresh its stylesheets in place.
func (h *Hub) InjectCSS(paths ...string) {
	h.broadcast(Message{Type: "css", Paths: paths})
}

// Close disconnects every browser.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) broadcast(m Message) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(m); err != nil {
			h.logger.Debug("Dropping browser.", "error", err)
			h.drop(c)
		}
	}
	h.logger.Debug("Live-reload message sent.", "type", m.Type, "clients", len(clients))
}

// Broadcast fans live-reload messages out to every running dev server. Actions
// that produce assets talk to it without knowing whether a server is up.
type Broadcast struct {
	mu   sync.Mutex
	hubs map[*Hub]struct{}
}

// NewBroadcast returns a Broadcast with no hubs attached.
func NewBroadcast() *Broadcast {
	return &Broadcast{hubs: make(map[*Hub]struct{})}
}

// Attach adds h until the returned function is called.
func (b *Broadcast) Attach(h *Hub) (detach func()) {
	b.mu.Lock()
	b.hubs[h] = struct{}{}
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.hubs, h)
		b.mu.Unlock()
	}
}

// Active reports whether any dev server is running.
func (b *Broadcast) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.hubs) > 0
}

// Reload implements the live-reload side of Hub for every attached hub.
func (b *Broadcast) Reload() {
	for _, h := range b.snapshot() {
		h.Reload()
	}
}

// InjectCSS forwards to every attached hub.
func (b *Broadcast) InjectCSS(paths ...string) {
	for _, h := range b.snapshot() {
		h.InjectCSS(paths...)
	}
}

func (b *Broadcast) snapshot() []*Hub {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Hub, 0, len(b.hubs))
	for h := range b.hubs {
		out = append(out, h)
	}
	return out
}

// Package live pushes sync events to browsers over websockets.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livemap/internal/alert"
	"livemap/internal/engine"
	"livemap/internal/lifecycle"
	"livemap/internal/shared/errors"
)

type EventType string

const (
	EventNotice    EventType = "notice"
	EventAlert     EventType = "alert"
	EventLifecycle EventType = "lifecycle"
	EventStatus    EventType = "status"
	EventWelcome   EventType = "welcome"
)

// Event is the envelope of every outbound message.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

type Options struct {
	// AllowedOrigins limits the websocket handshake; empty allows any.
	AllowedOrigins []string
	// OnMessage receives inbound client messages on the reading goroutine.
	OnMessage func(clientID string, msg Inbound)
}

// Hub fans events out to every connected client. Slow clients are
// disconnected instead of blocking the broadcaster.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	upgrader  websocket.Upgrader
	onMessage func(clientID string, msg Inbound)
	now       func() time.Time
	logger    *slog.Logger
}

func NewHub(opts Options) *Hub {
	h := &Hub{
		clients:   make(map[string]*Client),
		onMessage: opts.OnMessage,
		now:       time.Now,
		logger:    slog.With("component", "live_hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("operation", "ServeHTTP", "remote_addr", r.RemoteAddr)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &Client{ID: uuid.NewString(), hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	logger.Info("Client connected", "client_id", c.ID)

	h.sendTo(c, Event{Type: EventWelcome, At: h.now(), Data: map[string]string{"client_id": c.ID}})
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
		h.logger.Info("Client disconnected", "operation", "unregister", "client_id", c.ID)
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for every client.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", "operation", "Broadcast", "type", ev.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Client too slow, dropping", "operation", "Broadcast", "client_id", id)
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// sendTo queues ev for c unless c has already been dropped.
func (h *Hub) sendTo(c *Client, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.ID] != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) Notice(n engine.Notice) {
	h.Broadcast(Event{Type: EventNotice, At: n.At, Data: n})
}

func (h *Hub) Alert(a alert.Alert) {
	h.Broadcast(Event{Type: EventAlert, Data: a})
}

// Report forwards lifecycle changes; empty reports are not sent.
func (h *Hub) Report(r lifecycle.Report) {
	if r.Empty() {
		return
	}
	h.Broadcast(Event{Type: EventLifecycle, Data: r})
}

// Status publishes the periodic backend status.
func (h *Hub) Status(data any) {
	h.Broadcast(Event{Type: EventStatus, Data: data})
}

// Notify implements alert.Notifier.
func (h *Hub) Notify(ctx context.Context, a alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapUnavailable("alert delivery cancelled", err)
	}
	h.Alert(a)
	return nil
}

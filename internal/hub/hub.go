package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"netinventory/internal/logging"
	"netinventory/internal/service"
)

// Client represents a connected SSE client
type Client struct {
	id     string
	events chan []byte
}

// Hub fans inventory events out to SSE clients
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	register    chan *Client
	unregister  chan *Client
	broadcast   chan service.Event
	log         logrus.FieldLogger
	subscribers prometheus.Gauge
	keepAlive   time.Duration
}

// New creates a new Hub. subscribers may be nil.
func New(log logrus.FieldLogger, subscribers prometheus.Gauge) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan service.Event, 256),
		log:         logging.Component(log, "hub"),
		subscribers: subscribers,
		keepAlive:   30 * time.Second,
	}
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.events)
			}
			h.mu.Unlock()
			h.setGauge(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.setGauge(n)
			h.log.WithFields(logrus.Fields{"client": client.id, "total": n}).Debug("SSE client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.setGauge(n)
			h.log.WithFields(logrus.Fields{"client": client.id, "total": n}).Debug("SSE client disconnected")

		case event := <-h.broadcast:
			msg, err := format(event)
			if err != nil {
				h.log.WithError(err).Warn("failed to marshal event")
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- msg:
				default:
					h.log.WithField("client", client.id).Debug("SSE client is slow, skipping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func format(event service.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)), nil
}

func (h *Hub) setGauge(n int) {
	if h.subscribers != nil {
		h.subscribers.Set(float64(n))
	}
}

// Broadcast queues an event for every connected client
func (h *Hub) Broadcast(event service.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast channel full, dropping event")
	}
}

// Attach subscribes the hub to bus until ctx is done
func (h *Hub) Attach(ctx context.Context, bus *service.EventBus) {
	events := make(chan service.Event, 100)
	bus.Subscribe(events)
	go func() {
		defer bus.Unsubscribe(events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				h.Broadcast(ev)
			}
		}
	}()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := &Client{
		id:     uuid.NewString(),
		events: make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-time.After(time.Second):
		}
	}()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

package fanout

import (
	"context"
	"sync"

	"github.com/duette-app/duette/common/logger"
)

// Hub maintains active websocket clients and broadcasts catalog events to all of them
type Hub struct {
	clients map[*Client]struct{}
	mutex   sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	log *logger.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub's main loop. It owns every client's send channel and
// closes them all when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("event hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("event hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case data := <-h.broadcast:
			h.broadcastAll(data)
		}
	}
}

// Broadcast queues data for every connected client. Events are dropped when
// the hub is saturated.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("event hub saturated, dropping event", "size", len(data))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = struct{}{}
	h.log.Debug("event client registered", "remote", client.remote, "total", len(h.clients))
}

// removeClient closes the client's send channel once, whichever path gets there first
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.log.Debug("event client unregistered", "remote", client.remote, "remaining", len(h.clients))
}

func (h *Hub) broadcastAll(data []byte) {
	h.mutex.RLock()
	var slow []*Client
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.log.Warn("event client send buffer full, closing connection", "remote", client.remote)
		h.removeClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]struct{})
}

// ConnectionCount returns the number of connected clients
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

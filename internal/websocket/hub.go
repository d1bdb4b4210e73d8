package websocket

import (
	"sync"

	"moviesearch-client/internal/pkg/logger"

	"github.com/google/uuid"
)

// Hub tracks the relay's live connections.
type Hub struct {
	// Registered clients by connection ID.
	clients map[uuid.UUID]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed by Shutdown.
	quit chan struct{}

	// Lock for safe map access
	mu sync.RWMutex

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		clients:    make(map[uuid.UUID]*Client),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"conn_id": client.ID, "connections": total})

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.ID]
			delete(h.clients, client.ID)
			total := len(h.clients)
			h.mu.Unlock()
			if ok {
				client.close()
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"conn_id": client.ID, "connections": total})
			}

		case <-h.quit:
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[uuid.UUID]*Client)
			h.mu.Unlock()
			for _, client := range clients {
				client.close()
			}
			h.logger.Info("Hub", "Hub stopped", map[string]interface{}{"closed": len(clients)})
			return
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection's session and stops Run. Call once.
func (h *Hub) Shutdown() {
	close(h.quit)
}

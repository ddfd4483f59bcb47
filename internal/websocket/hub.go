// Package websocket pushes cart totals and checkout stage transitions to
// connected UI clients, so any component can observe derived cart state
// without polling.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/okstore/commerce-client/internal/checkout"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// Message type constants
const (
	TypeCartUpdate    = "cart:update"
	TypeCheckoutStage = "checkout:stage"
	TypeConnection    = "connection"
)

// Message is the envelope sent to clients.
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CartUpdatePayload carries the derived cart totals after a committed change.
type CartUpdatePayload struct {
	ItemCount int   `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
	Total     int64 `json:"total"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	once       sync.Once

	logger *slog.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Run processes register/unregister/broadcast events until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", slog.String("client_id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", slog.String("client_id", client.id))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastCartUpdate pushes derived cart totals to all clients. Wired as a
// cart store subscriber.
func (h *Hub) BroadcastCartUpdate(cart domain.Cart) {
	h.send(Message{
		Type: TypeCartUpdate,
		Payload: CartUpdatePayload{
			ItemCount: cart.ItemCount,
			Subtotal:  cart.Subtotal,
			Total:     cart.Total,
		},
		Timestamp: time.Now(),
	})
}

// BroadcastCheckoutTransition pushes a checkout stage change to all clients.
// Wired as a checkout session observer.
func (h *Hub) BroadcastCheckoutTransition(tr checkout.Transition) {
	h.send(Message{
		Type:      TypeCheckoutStage,
		Payload:   tr,
		Timestamp: time.Now(),
	})
}

func (h *Hub) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.quit:
	}
}

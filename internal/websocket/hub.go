// Package websocket bridges the broadcast bus to connected clients: each
// socket relays the bus topics its user is attached to, and socket
// lifecycle drives presence announce/leave.
package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/presence"
)

// Hub maintains the set of active clients. One connection per user: a new
// connection for the same user replaces the old one.
type Hub struct {
	bus      bus.Bus
	presence *presence.Tracker
	log      zerolog.Logger

	// Registered clients mapped by user ID
	clients map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(b bus.Bus, tracker *presence.Tracker, logger zerolog.Logger) *Hub {
	return &Hub{
		bus:        b,
		presence:   tracker,
		log:        logger,
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	// If user already has a connection, tear the old one down
	if existing, ok := h.clients[client.UserID]; ok {
		existing.teardown()
	}
	h.clients[client.UserID] = client
	h.mu.Unlock()

	if err := client.subscribeGlobal(); err != nil {
		h.log.Error().Err(err).Str("user_id", client.UserID).Msg("global subscribe failed")
	}
	h.presence.Track(context.Background(), client.UserID)

	h.log.Info().Str("user_id", client.UserID).Msg("client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.UserID]
	if ok && current == client {
		delete(h.clients, client.UserID)
	}
	h.mu.Unlock()

	if !ok || current != client {
		// Already replaced by a newer connection; presence is still live.
		client.teardown()
		return
	}

	client.teardown()
	h.presence.Leave(context.Background(), client.UserID)

	h.log.Info().Str("user_id", client.UserID).Msg("client disconnected")
}

// OnlineCount returns the number of currently connected clients
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

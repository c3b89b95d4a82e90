package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans recorded runs out to every connected console. Unlike a per-topic
// stream there is a single feed: the audit trail is global.
type Hub struct {
	mu        sync.RWMutex
	clients   map[Subscriber]struct{}
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[Subscriber]struct{}),
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
		case client := <-h.unreg:
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client to the feed.
func (h *Hub) Register(client Subscriber) {
	h.register <- client
}

// Unregister removes a client.
func (h *Hub) Unregister(client Subscriber) {
	h.unreg <- client
}

// Broadcast delivers a payload to every client.
func (h *Hub) Broadcast(payload []byte) {
	h.broadcast <- payload
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

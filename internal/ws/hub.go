package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages comment stream subscriptions by article ID.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with article identifier.
type message struct {
	articleID string
	payload   []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	articleID string
	client    Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.articleID]; !ok {
				h.clients[sub.articleID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.articleID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.articleID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.articleID)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.articleID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.articleID)
				}
			}
		}
	}
}

// Register adds a client to an article's comment stream.
func (h *Hub) Register(articleID string, client Subscriber) {
	h.register <- subscription{articleID: articleID, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(articleID string, client Subscriber) {
	h.unreg <- subscription{articleID: articleID, client: client}
}

// Broadcast sends payload to all clients watching the article.
func (h *Hub) Broadcast(articleID string, payload []byte) {
	h.broadcast <- message{articleID: articleID, payload: payload}
}

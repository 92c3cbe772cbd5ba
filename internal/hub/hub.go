// Package hub indexes live websocket clients so change-feed envelopes can be
// routed to the users they concern.
package hub

import (
	"sync"
	"time"
)

type Client struct {
	UserID    string
	SocketID  string
	Send      chan []byte
	Connected time.Time
}

type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
}

func New() *Hub {
	return &Hub{byUser: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byUser[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[c.UserID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.byUser[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// SendToUser delivers to every socket the user has open on this instance.
// Slow clients are skipped; they re-sync on their next fetch.
func (h *Hub) SendToUser(userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		select {
		case c.Send <- msg:
		default:
		}
	}
}

// SendToUsers fans one payload out to several users, deduplicating is the
// caller's job.
func (h *Hub) SendToUsers(userIDs []string, msg []byte) {
	for _, id := range userIDs {
		h.SendToUser(id, msg)
	}
}

// Connected reports whether the user has at least one socket here.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// Package realtime fans events out to the connections subscribed to a room.
package realtime

import (
	"log"
	"sync"
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	Send(frame Frame) error
}

// Hub tracks room subscriptions. Sends happen outside the lock.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Conn)}
}

func (h *Hub) Subscribe(conn Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[string]Conn)
		h.rooms[roomID] = subs
	}
	subs[conn.ID()] = conn
}

func (h *Hub) Unsubscribe(conn Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(conn.ID(), roomID)
}

// UnsubscribeAll drops the connection from every room it joined.
func (h *Hub) UnsubscribeAll(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.rooms {
		h.unsubscribeLocked(conn.ID(), roomID)
	}
}

func (h *Hub) unsubscribeLocked(connID, roomID string) {
	subs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
}

// Subscribers returns the number of connections in a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Publish sends an event to every subscriber of roomID and returns how many
// sends succeeded. Failed sends are logged and skipped.
func (h *Hub) Publish(roomID, event string, payload any) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	frame := Frame{Event: event, Data: payload}
	delivered := 0
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			log.Printf("[WS] send %s to %s in room %s failed: %v", event, c.ID(), roomID, err)
			continue
		}
		delivered++
	}
	return delivered
}

// PublishToOne sends an event to a single connection.
func (h *Hub) PublishToOne(conn Conn, event string, payload any) error {
	return conn.Send(Frame{Event: event, Data: payload})
}

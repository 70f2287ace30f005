// Package realtime routes mutation and presence events to connected
// websocket sessions, grouped by board, by user, and by admins. Delivery is
// best-effort and at-most-once: a session with a full buffer misses the
// event and is expected to re-fetch state on reconnect.
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is the wire envelope pushed to subscribers.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Event names for real-time delivery.
const (
	EventBoardUpdate    = "board:update"
	EventColumnUpdate   = "column:update"
	EventCardUpdate     = "card:update"
	EventCommentUpdate  = "comment:update"
	EventMemberUpdate   = "member:update"
	EventUserJoined     = "presence:user_joined"
	EventUserLeft       = "presence:user_left"
	EventTypingStart    = "typing:start"
	EventTypingStop     = "typing:stop"
	EventCardLocked     = "card:edit:locked"
	EventCardLockFailed = "card:edit:lock_failed"
	EventCardUnlocked   = "card:edit:unlocked"
)

// Hub holds the registry of live sessions. It keeps no history: events for
// sessions that are gone or saturated are dropped.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
	}
}

// Register adds a connected session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a session and closes its send channel.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		close(s.send)
	}
	h.mu.Unlock()
}

// ToBoard delivers an event to every session subscribed to boardID.
func (h *Hub) ToBoard(boardID uuid.UUID, event string, payload any) {
	h.fanOut(event, payload, func(s *Session) bool {
		return s.InBoard(boardID)
	})
}

// ToUser delivers an event to every session of one user.
func (h *Hub) ToUser(userID uuid.UUID, event string, payload any) {
	h.fanOut(event, payload, func(s *Session) bool {
		return s.userID == userID
	})
}

// ToAdmins delivers an event to every session of an administrator.
func (h *Hub) ToAdmins(event string, payload any) {
	h.fanOut(event, payload, func(s *Session) bool {
		return s.isAdmin
	})
}

func (h *Hub) fanOut(event string, payload any, match func(*Session) bool) {
	data, err := json.Marshal(Event{Name: event, Payload: payload})
	if err != nil {
		log.Printf("⚠️  Broadcast marshal failed for %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if !match(s) {
			continue
		}
		select {
		case s.send <- data:
		default:
			// Slow consumer: drop rather than block the mutation path.
		}
	}
}

// SessionCount reports the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

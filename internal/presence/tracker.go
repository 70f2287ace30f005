// Package presence tracks which users are currently in a board and which
// are typing on a card. Entries are heartbeat-based and self-healing: every
// read purges entries older than the staleness window, so consumers never
// see a participant whose disconnect was missed.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taskboard/internal/ephemeral"

	"github.com/google/uuid"
)

type Entry struct {
	SocketID string    `json:"socket_id"`
	UserName string    `json:"user_name,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

type Tracker struct {
	store          ephemeral.Store
	presenceWindow time.Duration
	typingWindow   time.Duration
}

func NewTracker(store ephemeral.Store, presenceWindow, typingWindow time.Duration) *Tracker {
	return &Tracker{
		store:          store,
		presenceWindow: presenceWindow,
		typingWindow:   typingWindow,
	}
}

func boardKey(boardID uuid.UUID) string {
	return "presence:board:" + boardID.String()
}

func typingKey(boardID, cardID uuid.UUID) string {
	return fmt.Sprintf("typing:board:%s:card:%s", boardID, cardID)
}

// SetPresence records or refreshes a user's presence on a board. A repeat
// call acts as a heartbeat.
func (t *Tracker) SetPresence(ctx context.Context, boardID, userID uuid.UUID, entry Entry) {
	entry.LastSeen = time.Now()
	t.setField(ctx, boardKey(boardID), userID.String(), entry, t.presenceWindow)
}

// RemovePresence drops a user's presence entry, typically on disconnect.
func (t *Tracker) RemovePresence(ctx context.Context, boardID, userID uuid.UUID) {
	if err := t.store.HDel(ctx, boardKey(boardID), userID.String()); err != nil {
		log.Printf("⚠️  Presence remove degraded for board %s: %v", boardID, err)
	}
}

// GetPresence returns the live participants of a board, purging anything
// whose heartbeat is older than the presence window.
func (t *Tracker) GetPresence(ctx context.Context, boardID uuid.UUID) map[uuid.UUID]Entry {
	return t.getFields(ctx, boardKey(boardID), t.presenceWindow)
}

// SetTyping marks a user as typing on a card.
func (t *Tracker) SetTyping(ctx context.Context, boardID, cardID, userID uuid.UUID, entry Entry) {
	entry.LastSeen = time.Now()
	t.setField(ctx, typingKey(boardID, cardID), userID.String(), entry, t.typingWindow)
}

// RemoveTyping clears a user's typing indicator on a card.
func (t *Tracker) RemoveTyping(ctx context.Context, boardID, cardID, userID uuid.UUID) {
	if err := t.store.HDel(ctx, typingKey(boardID, cardID), userID.String()); err != nil {
		log.Printf("⚠️  Typing remove degraded for card %s: %v", cardID, err)
	}
}

// GetTyping returns the users currently typing on a card, purging entries
// older than the typing window.
func (t *Tracker) GetTyping(ctx context.Context, boardID, cardID uuid.UUID) map[uuid.UUID]Entry {
	return t.getFields(ctx, typingKey(boardID, cardID), t.typingWindow)
}

func (t *Tracker) setField(ctx context.Context, key, field string, entry Entry, window time.Duration) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("⚠️  Presence marshal failed for %s: %v", key, err)
		return
	}
	if err := t.store.HSet(ctx, key, field, string(data)); err != nil {
		log.Printf("⚠️  Presence write degraded for %s: %v", key, err)
		return
	}
	// The whole hash rides one TTL; it is refreshed on every write so the
	// key disappears once every participant has gone quiet.
	if err := t.store.Expire(ctx, key, window*2); err != nil {
		log.Printf("⚠️  Presence expire degraded for %s: %v", key, err)
	}
}

func (t *Tracker) getFields(ctx context.Context, key string, window time.Duration) map[uuid.UUID]Entry {
	raw, err := t.store.HGetAll(ctx, key)
	if err != nil {
		log.Printf("⚠️  Presence read degraded for %s: %v", key, err)
		return map[uuid.UUID]Entry{}
	}

	result := make(map[uuid.UUID]Entry, len(raw))
	cutoff := time.Now().Add(-window)
	var stale []string

	for field, value := range raw {
		userID, err := uuid.Parse(field)
		if err != nil {
			stale = append(stale, field)
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			stale = append(stale, field)
			continue
		}
		if entry.LastSeen.Before(cutoff) {
			stale = append(stale, field)
			continue
		}
		result[userID] = entry
	}

	if len(stale) > 0 {
		if err := t.store.HDel(ctx, key, stale...); err != nil {
			log.Printf("⚠️  Presence purge degraded for %s: %v", key, err)
		}
	}

	return result
}

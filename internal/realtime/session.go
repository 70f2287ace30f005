package realtime

import (
	"sync"

	"github.com/google/uuid"
)

const sendBuffer = 32

// Session is one connected client. A session belongs to exactly one user
// but may subscribe to several boards over its lifetime.
type Session struct {
	ID      string
	userID  uuid.UUID
	isAdmin bool

	mu     sync.RWMutex
	boards map[uuid.UUID]struct{}

	send chan []byte
}

func NewSession(userID uuid.UUID, isAdmin bool) *Session {
	return &Session{
		ID:      uuid.NewString(),
		userID:  userID,
		isAdmin: isAdmin,
		boards:  make(map[uuid.UUID]struct{}),
		send:    make(chan []byte, sendBuffer),
	}
}

func (s *Session) UserID() uuid.UUID {
	return s.userID
}

// Send exposes the outbound channel for the connection's write pump.
func (s *Session) Send() <-chan []byte {
	return s.send
}

// JoinBoard subscribes the session to a board's event group.
func (s *Session) JoinBoard(boardID uuid.UUID) {
	s.mu.Lock()
	s.boards[boardID] = struct{}{}
	s.mu.Unlock()
}

// LeaveBoard unsubscribes the session from a board's event group.
func (s *Session) LeaveBoard(boardID uuid.UUID) {
	s.mu.Lock()
	delete(s.boards, boardID)
	s.mu.Unlock()
}

func (s *Session) InBoard(boardID uuid.UUID) bool {
	s.mu.RLock()
	_, ok := s.boards[boardID]
	s.mu.RUnlock()
	return ok
}

// Boards returns a snapshot of the session's subscriptions, used to clean
// up presence when the connection drops.
func (s *Session) Boards() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.boards))
	for id := range s.boards {
		out = append(out, id)
	}
	return out
}

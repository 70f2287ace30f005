package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/permission"
	"taskboard/internal/presence"
	"taskboard/internal/realtime"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type WSHandler struct {
	hub      *realtime.Hub
	tracker  *presence.Tracker
	resolver *permission.Resolver
	userRepo *repository.UserRepository
	sync     *service.Sync

	upgrader websocket.Upgrader
}

func NewWSHandler(
	hub *realtime.Hub,
	tracker *presence.Tracker,
	resolver *permission.Resolver,
	userRepo *repository.UserRepository,
	sync *service.Sync,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		tracker:  tracker,
		resolver: resolver,
		userRepo: userRepo,
		sync:     sync,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker enforces the configured browser-origin allow list. An empty
// list admits every origin, the local-development default. Requests without
// an Origin header are not browser cross-origin requests and pass through.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// clientMessage is what a connected client may send over the socket.
type clientMessage struct {
	Action  string `json:"action"`
	BoardID string `json:"board_id,omitempty"`
	CardID  string `json:"card_id,omitempty"`
}

// Serve upgrades the request and runs the session's read loop until the
// client disconnects. Presence for every joined board is cleaned up on the
// way out; even if cleanup is missed, the staleness purge covers it.
func (h *WSHandler) Serve(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️  Websocket upgrade failed: %v", err)
		return
	}

	session := realtime.NewSession(userID, user.IsAdmin)
	h.hub.Register(session)

	go h.writePump(conn, session)
	h.readPump(conn, session, user.Name)
}

func (h *WSHandler) readPump(conn *websocket.Conn, session *realtime.Session, userName string) {
	defer func() {
		h.disconnect(session)
		conn.Close()
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.handleMessage(session, userName, msg)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, session *realtime.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-session.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleMessage(session *realtime.Session, userName string, msg clientMessage) {
	ctx := context.Background()
	userID := session.UserID()

	switch msg.Action {
	case "join":
		boardID, err := uuid.Parse(msg.BoardID)
		if err != nil {
			return
		}
		grant, err := h.resolver.Resolve(ctx, userID, boardID)
		if err != nil || grant == nil || !grant.Permissions.CanView {
			return
		}
		session.JoinBoard(boardID)
		h.tracker.SetPresence(ctx, boardID, userID, presence.Entry{SocketID: session.ID, UserName: userName})
		h.hub.ToBoard(boardID, realtime.EventUserJoined, gin.H{"board_id": boardID, "user_id": userID, "user_name": userName})

	case "leave":
		boardID, err := uuid.Parse(msg.BoardID)
		if err != nil {
			return
		}
		session.LeaveBoard(boardID)
		h.tracker.RemovePresence(ctx, boardID, userID)
		h.hub.ToBoard(boardID, realtime.EventUserLeft, gin.H{"board_id": boardID, "user_id": userID})

	case "heartbeat":
		for _, boardID := range session.Boards() {
			h.tracker.SetPresence(ctx, boardID, userID, presence.Entry{SocketID: session.ID, UserName: userName})
		}

	case "typing:start", "typing:stop":
		boardID, err := uuid.Parse(msg.BoardID)
		if err != nil {
			return
		}
		cardID, err := uuid.Parse(msg.CardID)
		if err != nil {
			return
		}
		if !session.InBoard(boardID) {
			return
		}
		if msg.Action == "typing:start" {
			h.tracker.SetTyping(ctx, boardID, cardID, userID, presence.Entry{SocketID: session.ID, UserName: userName})
			h.hub.ToBoard(boardID, realtime.EventTypingStart, gin.H{"card_id": cardID, "user_id": userID, "user_name": userName})
		} else {
			h.tracker.RemoveTyping(ctx, boardID, cardID, userID)
			h.hub.ToBoard(boardID, realtime.EventTypingStop, gin.H{"card_id": cardID, "user_id": userID})
		}

	case "card:lock":
		cardID, err := uuid.Parse(msg.CardID)
		if err != nil {
			return
		}
		if _, err := h.sync.LockCardForEdit(ctx, cardID, userID); err != nil {
			log.Printf("⚠️  Card lock over socket failed: %v", err)
		}

	case "card:unlock":
		cardID, err := uuid.Parse(msg.CardID)
		if err != nil {
			return
		}
		if err := h.sync.UnlockCardForEdit(ctx, cardID, userID); err != nil {
			log.Printf("⚠️  Card unlock over socket failed: %v", err)
		}
	}
}

func (h *WSHandler) disconnect(session *realtime.Session) {
	ctx := context.Background()
	for _, boardID := range session.Boards() {
		h.tracker.RemovePresence(ctx, boardID, session.UserID())
		h.hub.ToBoard(boardID, realtime.EventUserLeft, gin.H{"board_id": boardID, "user_id": session.UserID()})
	}
	h.hub.Unregister(session)
}

// Presence returns the live participants of a board over plain HTTP, for
// clients that want an initial roster before the socket is up.
func (h *WSHandler) Presence(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	grant, err := h.resolver.Resolve(c.Request.Context(), userID, boardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check board access"})
		return
	}
	if grant == nil || !grant.Permissions.CanView {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to view this board"})
		return
	}

	entries := h.tracker.GetPresence(c.Request.Context(), boardID)
	response := make(map[string]presence.Entry, len(entries))
	for id, entry := range entries {
		response[id.String()] = entry
	}

	c.JSON(http.StatusOK, response)
}

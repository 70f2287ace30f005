package handler

import (
	"net/http"

	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

type BoardHandler struct {
	boardRepo  *repository.BoardRepository
	memberRepo *repository.BoardMemberRepository
	auditRepo  *repository.AuditRepository
	resolver   *permission.Resolver
	sync       *service.Sync
}

func NewBoardHandler(
	boardRepo *repository.BoardRepository,
	memberRepo *repository.BoardMemberRepository,
	auditRepo *repository.AuditRepository,
	resolver *permission.Resolver,
	sync *service.Sync,
) *BoardHandler {
	return &BoardHandler{
		boardRepo:  boardRepo,
		memberRepo: memberRepo,
		auditRepo:  auditRepo,
		resolver:   resolver,
		sync:       sync,
	}
}

type CreateBoardRequest struct {
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	Visibility  string         `json:"visibility"`
	Settings    map[string]any `json:"settings"`
}

type BoardResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	OwnerID     string         `json:"owner_id"`
	Visibility  string         `json:"visibility"`
	Archived    bool           `json:"archived"`
	Settings    map[string]any `json:"settings,omitempty"`
}

func boardResponse(board *model.Board) BoardResponse {
	return BoardResponse{
		ID:          board.ID.String(),
		Title:       board.Title,
		Description: board.Description,
		OwnerID:     board.OwnerID.String(),
		Visibility:  board.Visibility,
		Archived:    board.Archived,
		Settings:    board.Settings,
	}
}

func (h *BoardHandler) Create(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	var req CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	board, err := h.sync.CreateBoard(c.Request.Context(), service.CreateBoardInput{
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
		Settings:    req.Settings,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, boardResponse(board))
}

// GetAll lists the boards a user owns or belongs to.
func (h *BoardHandler) GetAll(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	owned, err := h.boardRepo.GetOwned(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve boards"})
		return
	}

	member, err := h.memberRepo.GetMemberBoards(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve boards"})
		return
	}

	seen := make(map[string]struct{})
	response := make([]BoardResponse, 0, len(owned)+len(member))
	for _, list := range [][]model.Board{owned, member} {
		for _, board := range list {
			if _, dup := seen[board.ID.String()]; dup {
				continue
			}
			seen[board.ID.String()] = struct{}{}
			response = append(response, boardResponse(&board))
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *BoardHandler) GetByID(c *gin.Context) {
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
	if grant == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to view this board"})
		return
	}

	board, err := h.boardRepo.GetByID(c.Request.Context(), boardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve board"})
		return
	}
	if board == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"board":       boardResponse(board),
		"role":        grant.Role,
		"permissions": grant.Permissions,
	})
}

type UpdateBoardRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Visibility  *string        `json:"visibility"`
	Settings    map[string]any `json:"settings"`
}

func (h *BoardHandler) Update(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	board, err := h.sync.UpdateBoard(c.Request.Context(), boardID, service.UpdateBoardInput{
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
		Settings:    req.Settings,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, boardResponse(board))
}

type ArchiveBoardRequest struct {
	Archived bool `json:"archived"`
}

func (h *BoardHandler) Archive(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ArchiveBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	board, err := h.sync.ArchiveBoard(c.Request.Context(), boardID, req.Archived, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, boardResponse(board))
}

// AuditTrail returns a board's audit events, oldest first.
func (h *BoardHandler) AuditTrail(c *gin.Context) {
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

	events, err := h.auditRepo.GetByBoardID(c.Request.Context(), boardID, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit trail"})
		return
	}

	c.JSON(http.StatusOK, events)
}

package handler

import (
	"net/http"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CardHandler struct {
	cardRepo   *repository.CardRepository
	columnRepo *repository.ColumnRepository
	resolver   *permission.Resolver
	sync       *service.Sync
}

func NewCardHandler(cardRepo *repository.CardRepository, columnRepo *repository.ColumnRepository, resolver *permission.Resolver, sync *service.Sync) *CardHandler {
	return &CardHandler{
		cardRepo:   cardRepo,
		columnRepo: columnRepo,
		resolver:   resolver,
		sync:       sync,
	}
}

type CreateCardRequest struct {
	ColumnID    string     `json:"column_id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Position    *int       `json:"position"`
}

type UpdateCardRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ClearDue    bool       `json:"clear_due"`
}

type MoveCardRequest struct {
	ColumnID string `json:"column_id" binding:"required"`
	Position int    `json:"position"`
}

type AssignCardRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type CardResponse struct {
	ID          string     `json:"id"`
	ColumnID    string     `json:"column_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	CreatedBy   string     `json:"created_by"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Position    int        `json:"position"`
}

func cardResponse(card *model.Card) CardResponse {
	resp := CardResponse{
		ID:          card.ID.String(),
		ColumnID:    card.ColumnID.String(),
		Title:       card.Title,
		Description: card.Description,
		CreatedBy:   card.CreatedBy.String(),
		Priority:    card.Priority,
		DueDate:     card.DueDate,
		Position:    card.Position,
	}
	if card.AssignedTo != nil {
		s := card.AssignedTo.String()
		resp.AssignedTo = &s
	}
	return resp
}

func (h *CardHandler) Create(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	columnID, err := uuid.Parse(req.ColumnID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column ID format"})
		return
	}

	card, err := h.sync.CreateCard(c.Request.Context(), service.CreateCardInput{
		ColumnID:    columnID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Position:    req.Position,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cardResponse(card))
}

func (h *CardHandler) GetByID(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	card, err := h.cardRepo.GetByID(c.Request.Context(), cardID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Card not found"})
		return
	}

	column, err := h.columnRepo.GetByID(c.Request.Context(), card.ColumnID)
	if err != nil || column == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve column"})
		return
	}

	grant, err := h.resolver.Resolve(c.Request.Context(), userID, column.BoardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check board access"})
		return
	}
	if grant == nil || !grant.Permissions.CanView {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to view this card"})
		return
	}

	c.JSON(http.StatusOK, cardResponse(card))
}

func (h *CardHandler) GetByColumnID(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	columnID, ok := parseID(c, "id")
	if !ok {
		return
	}

	column, err := h.columnRepo.GetByID(c.Request.Context(), columnID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve column"})
		return
	}
	if column == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Column not found"})
		return
	}

	grant, err := h.resolver.Resolve(c.Request.Context(), userID, column.BoardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check board access"})
		return
	}
	if grant == nil || !grant.Permissions.CanView {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to view this column"})
		return
	}

	cards, err := h.cardRepo.GetByColumnID(c.Request.Context(), columnID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cards"})
		return
	}

	response := make([]CardResponse, len(cards))
	for i, card := range cards {
		response[i] = cardResponse(&card)
	}

	c.JSON(http.StatusOK, response)
}

func (h *CardHandler) Update(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	card, err := h.sync.UpdateCard(c.Request.Context(), cardID, service.UpdateCardInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDue,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardResponse(card))
}

// Move relocates a card to a target column and position. Concurrent moves
// of the same card are serialized by the lock manager; a denied lock comes
// back as 409 so the client can retry.
func (h *CardHandler) Move(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req MoveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	columnID, err := uuid.Parse(req.ColumnID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column ID format"})
		return
	}

	card, err := h.sync.MoveCard(c.Request.Context(), cardID, columnID, req.Position, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardResponse(card))
}

func (h *CardHandler) Delete(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.sync.DeleteCard(c.Request.Context(), cardID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
}

func (h *CardHandler) Assign(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req AssignCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	assigneeID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	card, err := h.sync.AssignCard(c.Request.Context(), cardID, &assigneeID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardResponse(card))
}

func (h *CardHandler) Unassign(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	card, err := h.sync.AssignCard(c.Request.Context(), cardID, nil, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardResponse(card))
}

// Lock takes the interactive editing lock on a card; the denial is a 409.
func (h *CardHandler) Lock(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	locked, err := h.sync.LockCardForEdit(c.Request.Context(), cardID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !locked {
		c.JSON(http.StatusConflict, gin.H{"error": "Card is being edited by another user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Card locked for editing"})
}

func (h *CardHandler) Unlock(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.sync.UnlockCardForEdit(c.Request.Context(), cardID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Card unlocked"})
}

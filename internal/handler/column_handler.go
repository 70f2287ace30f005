package handler

import (
	"net/http"

	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ColumnHandler struct {
	columnRepo *repository.ColumnRepository
	resolver   *permission.Resolver
	sync       *service.Sync
}

func NewColumnHandler(columnRepo *repository.ColumnRepository, resolver *permission.Resolver, sync *service.Sync) *ColumnHandler {
	return &ColumnHandler{
		columnRepo: columnRepo,
		resolver:   resolver,
		sync:       sync,
	}
}

type CreateColumnRequest struct {
	Title    string `json:"title" binding:"required"`
	BoardID  string `json:"board_id" binding:"required"`
	Position *int   `json:"position"`
	WIPLimit *int   `json:"wip_limit"`
}

type UpdateColumnRequest struct {
	Title    string `json:"title"`
	WIPLimit *int   `json:"wip_limit"`
}

type MoveColumnRequest struct {
	Position int `json:"position"`
}

type ColumnResponse struct {
	ID       string `json:"id"`
	BoardID  string `json:"board_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	WIPLimit *int   `json:"wip_limit,omitempty"`
}

type ReorderColumnsRequest struct {
	ColumnIDs []string `json:"column_ids" binding:"required"`
}

func columnResponse(column *model.Column) ColumnResponse {
	return ColumnResponse{
		ID:       column.ID.String(),
		BoardID:  column.BoardID.String(),
		Title:    column.Title,
		Position: column.Position,
		WIPLimit: column.WIPLimit,
	}
}

func (h *ColumnHandler) Create(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	var req CreateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	boardID, err := uuid.Parse(req.BoardID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board ID format"})
		return
	}

	column, err := h.sync.CreateColumn(c.Request.Context(), service.CreateColumnInput{
		BoardID:  boardID,
		Title:    req.Title,
		Position: req.Position,
		WIPLimit: req.WIPLimit,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, columnResponse(column))
}

func (h *ColumnHandler) GetAll(c *gin.Context) {
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

	columns, err := h.columnRepo.GetByBoardID(c.Request.Context(), boardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve columns"})
		return
	}

	response := make([]ColumnResponse, len(columns))
	for i, column := range columns {
		response[i] = columnResponse(&column)
	}

	c.JSON(http.StatusOK, response)
}

func (h *ColumnHandler) GetByID(c *gin.Context) {
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

	c.JSON(http.StatusOK, columnResponse(column))
}

func (h *ColumnHandler) Update(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	columnID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	column, err := h.sync.UpdateColumn(c.Request.Context(), columnID, req.Title, req.WIPLimit, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, columnResponse(column))
}

func (h *ColumnHandler) Move(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	columnID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req MoveColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	column, err := h.sync.MoveColumn(c.Request.Context(), columnID, req.Position, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, columnResponse(column))
}

func (h *ColumnHandler) Delete(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	columnID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.sync.DeleteColumn(c.Request.Context(), columnID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Column deleted successfully"})
}

func (h *ColumnHandler) Reorder(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ReorderColumnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	orderedIDs := make([]uuid.UUID, len(req.ColumnIDs))
	for i, idStr := range req.ColumnIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column ID format"})
			return
		}
		orderedIDs[i] = id
	}

	if err := h.sync.ReorderColumns(c.Request.Context(), boardID, orderedIDs, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Columns reordered successfully"})
}

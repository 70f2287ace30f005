package handler

import (
	"net/http"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentRepo *repository.CommentRepository
	cardRepo    *repository.CardRepository
	columnRepo  *repository.ColumnRepository
	resolver    *permission.Resolver
	sync        *service.Sync
}

func NewCommentHandler(
	commentRepo *repository.CommentRepository,
	cardRepo *repository.CardRepository,
	columnRepo *repository.ColumnRepository,
	resolver *permission.Resolver,
	sync *service.Sync,
) *CommentHandler {
	return &CommentHandler{
		commentRepo: commentRepo,
		cardRepo:    cardRepo,
		columnRepo:  columnRepo,
		resolver:    resolver,
		sync:        sync,
	}
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

type CommentResponse struct {
	ID        string    `json:"id"`
	CardID    string    `json:"card_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func commentResponse(comment *model.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID.String(),
		CardID:    comment.CardID.String(),
		AuthorID:  comment.AuthorID.String(),
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func (h *CommentHandler) Create(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	comment, err := h.sync.CreateComment(c.Request.Context(), cardID, req.Body, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, commentResponse(comment))
}

func (h *CommentHandler) GetByCardID(c *gin.Context) {
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

	comments, err := h.commentRepo.GetByCardID(c.Request.Context(), cardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}

	response := make([]CommentResponse, len(comments))
	for i, comment := range comments {
		response[i] = commentResponse(&comment)
	}

	c.JSON(http.StatusOK, response)
}

type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *CommentHandler) Update(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	commentID, ok := parseID(c, "comment_id")
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	comment, err := h.sync.UpdateComment(c.Request.Context(), commentID, req.Body, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, commentResponse(comment))
}

func (h *CommentHandler) Delete(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	commentID, ok := parseID(c, "comment_id")
	if !ok {
		return
	}

	if err := h.sync.DeleteComment(c.Request.Context(), commentID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

package handler

import (
	"net/http"
	"strings"

	"taskboard/internal/permission"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

type MemberHandler struct {
	userRepo   *repository.UserRepository
	memberRepo *repository.BoardMemberRepository
	resolver   *permission.Resolver
	sync       *service.Sync
}

func NewMemberHandler(
	userRepo *repository.UserRepository,
	memberRepo *repository.BoardMemberRepository,
	resolver *permission.Resolver,
	sync *service.Sync,
) *MemberHandler {
	return &MemberHandler{
		userRepo:   userRepo,
		memberRepo: memberRepo,
		resolver:   resolver,
		sync:       sync,
	}
}

type InviteMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

type MemberResponse struct {
	BoardID string `json:"board_id"`
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
	Status  string `json:"status"`
}

func (h *MemberHandler) Invite(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	invitee, err := h.userRepo.FindByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}
	if invitee == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	member, err := h.sync.InviteMember(c.Request.Context(), boardID, invitee.ID, req.Role, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MemberResponse{
		BoardID: member.BoardID.String(),
		UserID:  member.UserID.String(),
		Email:   invitee.Email,
		Name:    invitee.Name,
		Role:    member.Role,
		Status:  member.Status,
	})
}

func (h *MemberHandler) List(c *gin.Context) {
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

	members, err := h.memberRepo.ListByBoard(c.Request.Context(), boardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	response := make([]MemberResponse, len(members))
	for i, member := range members {
		response[i] = MemberResponse{
			BoardID: member.BoardID.String(),
			UserID:  member.UserID.String(),
			Email:   member.User.Email,
			Name:    member.User.Name,
			Role:    member.Role,
			Status:  member.Status,
			// Permissions are derived from the role on demand, never read
			// from storage.
		}
	}

	c.JSON(http.StatusOK, response)
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *MemberHandler) ChangeRole(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	targetID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	member, err := h.sync.ChangeMemberRole(c.Request.Context(), boardID, targetID, req.Role, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MemberResponse{
		BoardID: member.BoardID.String(),
		UserID:  member.UserID.String(),
		Role:    member.Role,
		Status:  member.Status,
	})
}

func (h *MemberHandler) Remove(c *gin.Context) {
	userID, ok := authedUser(c)
	if !ok {
		return
	}

	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	targetID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	if err := h.sync.RemoveMember(c.Request.Context(), boardID, targetID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// Permissions returns the caller's own grant on a board, so clients can
// render UI affordances without guessing.
func (h *MemberHandler) Permissions(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{
		"role":        grant.Role,
		"permissions": grant.Permissions,
	})
}

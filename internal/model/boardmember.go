package model

import (
	"time"

	"github.com/google/uuid"
)

// Member roles for a board
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Membership status
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// BoardMember links a user to a board with a role. The permission set is
// never stored here: it is derived from Role on every read, so a role
// change can never leave a stale permission blob behind.
type BoardMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BoardID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_board_user"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_board_user"`
	Role      string    `gorm:"not null;check:role IN ('owner', 'admin', 'editor', 'viewer')"`
	Status    string    `gorm:"not null;default:'active';check:status IN ('pending', 'active', 'inactive')"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time

	Board Board `gorm:"foreignKey:BoardID"`
	User  User  `gorm:"foreignKey:UserID"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

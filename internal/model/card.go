package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Card priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Card is soft-deleted: DeletedAt keeps the row but drops it from every
// query, so deleted cards never hold a position slot in the dense sequence.
type Card struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ColumnID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title       string     `gorm:"not null"`
	Description string
	AssignedTo  *uuid.UUID `gorm:"type:uuid"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null"`
	Priority    string     `gorm:"not null;default:'medium';check:priority IN ('low', 'medium', 'high', 'urgent')"`
	DueDate     *time.Time
	Position    int            `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	Column   Column `gorm:"foreignKey:ColumnID"`
	Assignee User   `gorm:"foreignKey:AssignedTo"`
	Creator  User   `gorm:"foreignKey:CreatedBy"`
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

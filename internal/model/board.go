package model

import (
	"time"

	"github.com/google/uuid"
)

// Board visibility values
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Board struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Title       string         `gorm:"not null"`
	Description string
	OwnerID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Visibility  string         `gorm:"not null;default:'private';check:visibility IN ('private', 'public')"`
	Archived    bool           `gorm:"not null;default:false"`
	Settings    map[string]any `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Owner User `gorm:"foreignKey:OwnerID"`
}

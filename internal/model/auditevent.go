package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionMove    = "move"
	ActionReorder = "reorder"
	ActionDelete  = "delete"
	ActionArchive = "archive"
)

// AuditEvent is an immutable record of a state transition. Rows are only
// ever inserted; there is no update or delete path anywhere in the code.
type AuditEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Action     string         `gorm:"not null;index"`
	EntityType string         `gorm:"not null;index"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	BoardID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	ActorID    uuid.UUID      `gorm:"type:uuid;not null"`
	OldValues  map[string]any `gorm:"serializer:json"`
	NewValues  map[string]any `gorm:"serializer:json"`
	Metadata   map[string]any `gorm:"serializer:json"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index"`
}

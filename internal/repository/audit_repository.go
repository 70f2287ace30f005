package repository

import (
	"context"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository is append-only: events are inserted and read back, never
// updated or deleted.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, event *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// GetByBoardID returns a board's audit trail, oldest first. Ties on the
// timestamp fall back to insertion order via the id.
func (r *AuditRepository) GetByBoardID(ctx context.Context, boardID uuid.UUID, limit int) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	q := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("created_at").
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

func (r *AuditRepository) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at").
		Order("id").
		Find(&events).Error
	return events, err
}

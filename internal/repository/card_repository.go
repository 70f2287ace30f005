package repository

import (
	"context"
	"errors"

	"taskboard/internal/model"
	"taskboard/internal/reindex"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// GetByID retrieves a card by its ID. Soft-deleted cards are not found.
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	result := r.db.WithContext(ctx).First(&card, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, result.Error
	}
	return &card, nil
}

// GetByColumnID retrieves all visible cards in a column, in position order.
func (r *CardRepository) GetByColumnID(ctx context.Context, columnID uuid.UUID) ([]model.Card, error) {
	var cards []model.Card
	result := r.db.WithContext(ctx).Where("column_id = ?", columnID).Order("position").Find(&cards)
	if result.Error != nil {
		return nil, result.Error
	}
	return cards, nil
}

// CountByColumnID counts the visible cards in a column.
func (r *CardRepository) CountByColumnID(ctx context.Context, columnID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Card{}).Where("column_id = ?", columnID).Count(&count).Error
	return count, err
}

// CreateAt inserts the card at the requested position (nil for end of
// list), opening the gap in the same transaction. Soft-deleted cards hold
// no slot, so the count here spans visible rows only.
func (r *CardRepository) CreateAt(ctx context.Context, card *model.Card, position *int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Card{}).Where("column_id = ?", card.ColumnID).Count(&count).Error; err != nil {
			return err
		}

		p := reindex.EndPosition(int(count))
		if position != nil {
			p = reindex.Clamp(*position, int(count))
		}

		if p < int(count) {
			if err := tx.Model(&model.Card{}).
				Where("column_id = ? AND position >= ?", card.ColumnID, p).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		}

		card.Position = p
		return tx.Create(card).Error
	})
}

// Update updates an existing card's non-positional fields.
func (r *CardRepository) Update(ctx context.Context, card *model.Card) error {
	result := r.db.WithContext(ctx).Save(card)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

// Move updates the position and/or column of a card, keeping both affected
// sibling sequences dense. A cross-column move closes the gap in the source
// column and opens one in the destination, all in one transaction.
func (r *CardRepository) Move(ctx context.Context, cardID, columnID uuid.UUID, newPosition int) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&card, "id = ?", cardID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCardNotFound
			}
			return err
		}

		oldColumnID := card.ColumnID
		oldPosition := card.Position

		if oldColumnID != columnID {
			// Close the gap in the source column.
			if err := tx.Model(&model.Card{}).
				Where("column_id = ? AND position > ?", oldColumnID, oldPosition).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}

			var count int64
			if err := tx.Model(&model.Card{}).Where("column_id = ?", columnID).Count(&count).Error; err != nil {
				return err
			}
			target := reindex.Clamp(newPosition, int(count))

			// Open a gap in the destination column.
			if target < int(count) {
				if err := tx.Model(&model.Card{}).
					Where("column_id = ? AND position >= ?", columnID, target).
					Update("position", gorm.Expr("position + 1")).Error; err != nil {
					return err
				}
			}

			card.ColumnID = columnID
			card.Position = target
		} else if oldPosition != newPosition {
			var count int64
			if err := tx.Model(&model.Card{}).Where("column_id = ?", columnID).Count(&count).Error; err != nil {
				return err
			}
			target := reindex.ClampMove(newPosition, int(count))
			if target == oldPosition {
				return nil
			}

			shift := reindex.MoveShift(oldPosition, target)
			if err := tx.Model(&model.Card{}).
				Where("column_id = ? AND position >= ? AND position <= ?", columnID, shift.Lo, shift.Hi).
				Update("position", gorm.Expr("position + ?", shift.Delta)).Error; err != nil {
				return err
			}

			card.Position = target
		}

		return tx.Save(&card).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Delete soft-deletes a card and closes the position gap it leaves, so the
// remaining visible siblings stay dense.
func (r *CardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card model.Card
		if err := tx.First(&card, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCardNotFound
			}
			return err
		}

		if err := tx.Delete(&model.Card{}, "id = ?", id).Error; err != nil {
			return err
		}

		return tx.Model(&model.Card{}).
			Where("column_id = ? AND position > ?", card.ColumnID, card.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// AssignUser assigns a user to a card
func (r *CardRepository) AssignUser(ctx context.Context, cardID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", cardID).
		Update("assigned_to", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

// UnassignUser removes user assignment from a card
func (r *CardRepository) UnassignUser(ctx context.Context, cardID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", cardID).
		Update("assigned_to", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

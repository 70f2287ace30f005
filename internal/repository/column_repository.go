package repository

import (
	"context"
	"errors"

	"taskboard/internal/model"
	"taskboard/internal/reindex"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ColumnRepository struct {
	db *gorm.DB
}

func NewColumnRepository(db *gorm.DB) *ColumnRepository {
	return &ColumnRepository{db: db}
}

func (r *ColumnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Column, error) {
	var column model.Column
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&column).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &column, nil
}

func (r *ColumnRepository) GetByBoardID(ctx context.Context, boardID uuid.UUID) ([]model.Column, error) {
	var columns []model.Column
	err := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("position").Find(&columns).Error
	return columns, err
}

// CountByBoardID counts the columns of a board.
func (r *ColumnRepository) CountByBoardID(ctx context.Context, boardID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Column{}).Where("board_id = ?", boardID).Count(&count).Error
	return count, err
}

// CreateAt inserts the column at the requested position (nil for end of
// list), opening the gap and creating the row in one transaction. The
// target is clamped to the current sibling count first.
func (r *ColumnRepository) CreateAt(ctx context.Context, column *model.Column, position *int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Column{}).Where("board_id = ?", column.BoardID).Count(&count).Error; err != nil {
			return err
		}

		p := reindex.EndPosition(int(count))
		if position != nil {
			p = reindex.Clamp(*position, int(count))
		}

		if p < int(count) {
			if err := tx.Model(&model.Column{}).
				Where("board_id = ? AND position >= ?", column.BoardID, p).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		}

		column.Position = p
		return tx.Create(column).Error
	})
}

// Update persists title and WIP limit changes. Positions are never touched
// here; they only move through CreateAt, Move, Reorder, and Delete.
func (r *ColumnRepository) Update(ctx context.Context, column *model.Column) error {
	return r.db.WithContext(ctx).Model(&model.Column{}).
		Where("id = ?", column.ID).
		Updates(map[string]any{
			"title":     column.Title,
			"wip_limit": column.WIPLimit,
		}).Error
}

// Move shifts a column to a new position within its board, keeping the
// sibling sequence dense. Returns the updated column.
func (r *ColumnRepository) Move(ctx context.Context, columnID uuid.UUID, newPosition int) (*model.Column, error) {
	var column model.Column
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&column, "id = ?", columnID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrColumnNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&model.Column{}).Where("board_id = ?", column.BoardID).Count(&count).Error; err != nil {
			return err
		}

		target := reindex.ClampMove(newPosition, int(count))
		if target == column.Position {
			return nil
		}

		shift := reindex.MoveShift(column.Position, target)
		if err := tx.Model(&model.Column{}).
			Where("board_id = ? AND position >= ? AND position <= ?", column.BoardID, shift.Lo, shift.Hi).
			Update("position", gorm.Expr("position + ?", shift.Delta)).Error; err != nil {
			return err
		}

		column.Position = target
		return tx.Save(&column).Error
	})
	if err != nil {
		return nil, err
	}
	return &column, nil
}

// Reorder rewrites the positions of a board's columns to match the given id
// order. Every column of the board must appear exactly once; the result is
// the dense sequence 0..n-1 by construction.
func (r *ColumnRepository) Reorder(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Column{}).Where("board_id = ?", boardID).Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(orderedIDs) {
			return ErrColumnNotFound
		}

		for pos, id := range orderedIDs {
			result := tx.Model(&model.Column{}).
				Where("id = ? AND board_id = ?", id, boardID).
				Update("position", pos)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrColumnNotFound
			}
		}
		return nil
	})
}

// Delete removes a column and closes the position gap it leaves. Columns
// that still hold visible cards cannot be deleted.
func (r *ColumnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var column model.Column
		if err := tx.First(&column, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrColumnNotFound
			}
			return err
		}

		var cards int64
		if err := tx.Model(&model.Card{}).Where("column_id = ?", id).Count(&cards).Error; err != nil {
			return err
		}
		if cards > 0 {
			return ErrColumnNotEmpty
		}

		if err := tx.Delete(&model.Column{}, "id = ?", id).Error; err != nil {
			return err
		}

		return tx.Model(&model.Column{}).
			Where("board_id = ? AND position > ?", column.BoardID, column.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

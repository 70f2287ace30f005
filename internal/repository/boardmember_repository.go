package repository

import (
	"context"
	"errors"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BoardMemberRepository struct {
	db *gorm.DB
}

func NewBoardMemberRepository(db *gorm.DB) *BoardMemberRepository {
	return &BoardMemberRepository{db: db}
}

// Upsert adds a user to a board or updates the role of an existing
// membership, inside a transaction to avoid duplicate rows under races.
func (r *BoardMemberRepository) Upsert(ctx context.Context, boardID, userID uuid.UUID, role, status string) (*model.BoardMember, error) {
	var member model.BoardMember

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("board_id = ? AND user_id = ?", boardID, userID).First(&member).Error
		if err == nil {
			member.Role = role
			member.Status = status
			return tx.Save(&member).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		member = model.BoardMember{
			BoardID: boardID,
			UserID:  userID,
			Role:    role,
			Status:  status,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetActive returns the active membership for (board, user), or nil.
func (r *BoardMemberRepository) GetActive(ctx context.Context, boardID, userID uuid.UUID) (*model.BoardMember, error) {
	var member model.BoardMember
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND user_id = ? AND status = ?", boardID, userID, model.StatusActive).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *BoardMemberRepository) GetByBoardAndUser(ctx context.Context, boardID, userID uuid.UUID) (*model.BoardMember, error) {
	var member model.BoardMember
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateRole rewrites a member's role. Only the role is persisted; the
// permission set is recomputed from it on the next resolve, so there is no
// stored blob to fall out of sync.
func (r *BoardMemberRepository) UpdateRole(ctx context.Context, boardID, userID uuid.UUID, role string) error {
	result := r.db.WithContext(ctx).Model(&model.BoardMember{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *BoardMemberRepository) Remove(ctx context.Context, boardID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Delete(&model.BoardMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *BoardMemberRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.BoardMember, error) {
	var members []model.BoardMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("board_id = ?", boardID).
		Find(&members).Error
	return members, err
}

// GetMemberBoards returns the boards a user belongs to through an active membership.
func (r *BoardMemberRepository) GetMemberBoards(ctx context.Context, userID uuid.UUID) ([]model.Board, error) {
	var boards []model.Board
	err := r.db.WithContext(ctx).
		Joins("JOIN board_members ON board_members.board_id = boards.id").
		Where("board_members.user_id = ? AND board_members.status = ?", userID, model.StatusActive).
		Find(&boards).Error
	return boards, err
}

// CountActiveByRole counts active memberships with the given role on a board.
func (r *BoardMemberRepository) CountActiveByRole(ctx context.Context, boardID uuid.UUID, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BoardMember{}).
		Where("board_id = ? AND role = ? AND status = ?", boardID, role, model.StatusActive).
		Count(&count).Error
	return count, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/audit"
	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"

	"github.com/google/uuid"
)

type CreateCardInput struct {
	ColumnID    uuid.UUID
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	Position    *int
}

// CreateCard inserts a card at the requested position (end of list when
// omitted) under the column's card-list lock, respecting the WIP limit.
func (s *Sync) CreateCard(ctx context.Context, in CreateCardInput, actorID uuid.UUID) (*model.Card, error) {
	column, err := s.columnRepo.GetByID(ctx, in.ColumnID)
	if err != nil {
		return nil, err
	}
	if column == nil {
		return nil, fmt.Errorf("%w: column %s", ErrNotFound, in.ColumnID)
	}

	board, err := s.authorize(ctx, actorID, column.BoardID, requireEdit)
	if err != nil {
		return nil, err
	}
	if err := checkActive(board); err != nil {
		return nil, err
	}

	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(in.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}

	owner := uuid.NewString()
	resource := cardsLockResource(in.ColumnID)
	ok, err := s.locks.Acquire(ctx, resource, owner, s.moveLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: column cards are being rearranged by another user", ErrConflict)
	}
	defer s.locks.Release(ctx, resource, owner)

	if column.WIPLimit != nil {
		count, err := s.cardRepo.CountByColumnID(ctx, in.ColumnID)
		if err != nil {
			return nil, err
		}
		if count >= int64(*column.WIPLimit) {
			return nil, fmt.Errorf("%w: column WIP limit reached", ErrConflict)
		}
	}

	card := &model.Card{
		ColumnID:    in.ColumnID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedBy:   actorID,
	}
	if err := s.cardRepo.CreateAt(ctx, card, in.Position); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionCreate,
		EntityType: audit.EntityCard,
		EntityID:   card.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		NewValues:  map[string]any{"title": card.Title, "column_id": card.ColumnID, "position": card.Position},
	})

	s.hub.ToBoard(board.ID, eventCardUpdate, cardPayload(card))
	return card, nil
}

type UpdateCardInput struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
}

// UpdateCard changes a card's record fields. Conflicting concurrent updates
// resolve last-writer-wins at the record level; positions are untouched.
func (s *Sync) UpdateCard(ctx context.Context, cardID uuid.UUID, in UpdateCardInput, actorID uuid.UUID) (*model.Card, error) {
	card, board, err := s.loadCard(ctx, cardID, actorID, requireEdit)
	if err != nil {
		return nil, err
	}

	old := map[string]any{
		"title":       card.Title,
		"description": card.Description,
		"priority":    card.Priority,
		"due_date":    card.DueDate,
	}

	if in.Title != nil {
		card.Title = *in.Title
	}
	if in.Description != nil {
		card.Description = *in.Description
	}
	if in.Priority != nil {
		if !model.ValidPriority(*in.Priority) {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, *in.Priority)
		}
		card.Priority = *in.Priority
	}
	if in.ClearDue {
		card.DueDate = nil
	} else if in.DueDate != nil {
		card.DueDate = in.DueDate
	}

	if err := s.cardRepo.Update(ctx, card); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionUpdate,
		EntityType: audit.EntityCard,
		EntityID:   card.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  old,
		NewValues: map[string]any{
			"title":       card.Title,
			"description": card.Description,
			"priority":    card.Priority,
			"due_date":    card.DueDate,
		},
	})

	s.hub.ToBoard(board.ID, eventCardUpdate, cardPayload(card))
	return card, nil
}

// DeleteCard soft-deletes a card. The row is retained, hidden from every
// query, and its position slot closes for the remaining siblings.
func (s *Sync) DeleteCard(ctx context.Context, cardID uuid.UUID, actorID uuid.UUID) error {
	card, board, err := s.loadCard(ctx, cardID, actorID, requireDelete)
	if err != nil {
		return err
	}

	owner := uuid.NewString()
	release, ok, err := s.acquireAll(ctx, owner, cardMoveResources(cardID, card.ColumnID))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: card is being moved by another user", ErrConflict)
	}
	defer release()

	if err := s.cardRepo.Delete(ctx, cardID); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return fmt.Errorf("%w: card %s", ErrNotFound, cardID)
		}
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionDelete,
		EntityType: audit.EntityCard,
		EntityID:   cardID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"title": card.Title, "column_id": card.ColumnID, "position": card.Position},
	})

	s.hub.ToBoard(board.ID, eventCardUpdate, map[string]any{"id": cardID, "deleted": true})
	return nil
}

// AssignCard sets or clears the card's assignee.
func (s *Sync) AssignCard(ctx context.Context, cardID uuid.UUID, assigneeID *uuid.UUID, actorID uuid.UUID) (*model.Card, error) {
	card, board, err := s.loadCard(ctx, cardID, actorID, requireEdit)
	if err != nil {
		return nil, err
	}

	old := map[string]any{"assigned_to": card.AssignedTo}
	if assigneeID != nil {
		if err := s.cardRepo.AssignUser(ctx, cardID, *assigneeID); err != nil {
			return nil, err
		}
		card.AssignedTo = assigneeID
	} else {
		if err := s.cardRepo.UnassignUser(ctx, cardID); err != nil {
			return nil, err
		}
		card.AssignedTo = nil
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionUpdate,
		EntityType: audit.EntityCard,
		EntityID:   cardID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  old,
		NewValues:  map[string]any{"assigned_to": card.AssignedTo},
	})

	s.hub.ToBoard(board.ID, eventCardUpdate, cardPayload(card))
	if assigneeID != nil {
		s.hub.ToUser(*assigneeID, eventCardUpdate, cardPayload(card))
	}
	return card, nil
}

// loadCard fetches a card, its column's board, and checks a capability.
func (s *Sync) loadCard(ctx context.Context, cardID, actorID uuid.UUID, need func(p permission.Permissions) bool) (*model.Card, *model.Board, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, nil, fmt.Errorf("%w: card %s", ErrNotFound, cardID)
		}
		return nil, nil, err
	}

	column, err := s.columnRepo.GetByID(ctx, card.ColumnID)
	if err != nil {
		return nil, nil, err
	}
	if column == nil {
		return nil, nil, fmt.Errorf("%w: column %s", ErrNotFound, card.ColumnID)
	}

	board, err := s.authorize(ctx, actorID, column.BoardID, need)
	if err != nil {
		return nil, nil, err
	}
	if err := checkActive(board); err != nil {
		return nil, nil, err
	}
	return card, board, nil
}

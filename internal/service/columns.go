package service

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/audit"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/google/uuid"
)

type CreateColumnInput struct {
	BoardID  uuid.UUID
	Title    string
	Position *int
	WIPLimit *int
}

// CreateColumn inserts a column at the requested position (end of list when
// omitted) under the board's column-list lock.
func (s *Sync) CreateColumn(ctx context.Context, in CreateColumnInput, actorID uuid.UUID) (*model.Column, error) {
	board, err := s.authorize(ctx, actorID, in.BoardID, requireEdit)
	if err != nil {
		return nil, err
	}
	if err := checkActive(board); err != nil {
		return nil, err
	}

	owner := uuid.NewString()
	resource := columnsLockResource(in.BoardID)
	ok, err := s.locks.Acquire(ctx, resource, owner, s.moveLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: board columns are being reordered by another user", ErrConflict)
	}
	defer s.locks.Release(ctx, resource, owner)

	column := &model.Column{
		BoardID:  in.BoardID,
		Title:    in.Title,
		WIPLimit: in.WIPLimit,
	}
	if err := s.columnRepo.CreateAt(ctx, column, in.Position); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionCreate,
		EntityType: audit.EntityColumn,
		EntityID:   column.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		NewValues:  map[string]any{"title": column.Title, "position": column.Position},
	})

	s.hub.ToBoard(board.ID, eventColumnUpdate, columnPayload(column))
	return column, nil
}

// UpdateColumn changes a column's title or WIP limit. Positions never move
// here, so no lock is taken; the record itself is last-writer-wins.
func (s *Sync) UpdateColumn(ctx context.Context, columnID uuid.UUID, title string, wipLimit *int, actorID uuid.UUID) (*model.Column, error) {
	column, err := s.columnRepo.GetByID(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if column == nil {
		return nil, fmt.Errorf("%w: column %s", ErrNotFound, columnID)
	}

	board, err := s.authorize(ctx, actorID, column.BoardID, requireEdit)
	if err != nil {
		return nil, err
	}
	if err := checkActive(board); err != nil {
		return nil, err
	}

	old := map[string]any{"title": column.Title, "wip_limit": column.WIPLimit}
	if title != "" {
		column.Title = title
	}
	if wipLimit != nil {
		column.WIPLimit = wipLimit
	}

	if err := s.columnRepo.Update(ctx, column); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionUpdate,
		EntityType: audit.EntityColumn,
		EntityID:   column.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  old,
		NewValues:  map[string]any{"title": column.Title, "wip_limit": column.WIPLimit},
	})

	s.hub.ToBoard(board.ID, eventColumnUpdate, columnPayload(column))
	return column, nil
}

// DeleteColumn removes an empty column and closes its position gap.
func (s *Sync) DeleteColumn(ctx context.Context, columnID uuid.UUID, actorID uuid.UUID) error {
	column, err := s.columnRepo.GetByID(ctx, columnID)
	if err != nil {
		return err
	}
	if column == nil {
		return fmt.Errorf("%w: column %s", ErrNotFound, columnID)
	}

	board, err := s.authorize(ctx, actorID, column.BoardID, requireDelete)
	if err != nil {
		return err
	}
	if err := checkActive(board); err != nil {
		return err
	}

	owner := uuid.NewString()
	resource := columnsLockResource(board.ID)
	ok, err := s.locks.Acquire(ctx, resource, owner, s.moveLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: board columns are being reordered by another user", ErrConflict)
	}
	defer s.locks.Release(ctx, resource, owner)

	if err := s.columnRepo.Delete(ctx, columnID); err != nil {
		switch {
		case errors.Is(err, repository.ErrColumnNotFound):
			return fmt.Errorf("%w: column %s", ErrNotFound, columnID)
		case errors.Is(err, repository.ErrColumnNotEmpty):
			return fmt.Errorf("%w: column still contains cards", ErrConflict)
		}
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionDelete,
		EntityType: audit.EntityColumn,
		EntityID:   columnID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"title": column.Title, "position": column.Position},
	})

	s.hub.ToBoard(board.ID, eventColumnUpdate, map[string]any{"id": columnID, "deleted": true})
	return nil
}

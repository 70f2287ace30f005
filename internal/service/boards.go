package service

import (
	"context"
	"fmt"

	"taskboard/internal/audit"
	"taskboard/internal/model"

	"github.com/google/uuid"
)

type CreateBoardInput struct {
	Title       string
	Description string
	Visibility  string
	Settings    map[string]any
}

// CreateBoard creates a board and its owner membership in one step.
func (s *Sync) CreateBoard(ctx context.Context, in CreateBoardInput, actorID uuid.UUID) (*model.Board, error) {
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPrivate
	}
	if in.Visibility != model.VisibilityPrivate && in.Visibility != model.VisibilityPublic {
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrValidation, in.Visibility)
	}

	board := &model.Board{
		Title:       in.Title,
		Description: in.Description,
		OwnerID:     actorID,
		Visibility:  in.Visibility,
		Settings:    in.Settings,
	}
	if err := s.boardRepo.Create(ctx, board); err != nil {
		return nil, err
	}

	// The owner membership row keeps listing queries uniform; the owner's
	// permissions never come from it.
	if _, err := s.memberRepo.Upsert(ctx, board.ID, actorID, model.RoleOwner, model.StatusActive); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionCreate,
		EntityType: audit.EntityBoard,
		EntityID:   board.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		NewValues:  map[string]any{"title": board.Title, "visibility": board.Visibility},
	})
	return board, nil
}

type UpdateBoardInput struct {
	Title       *string
	Description *string
	Visibility  *string
	Settings    map[string]any
}

// UpdateBoard changes board metadata. Settings management is owner-only;
// other fields need edit capability.
func (s *Sync) UpdateBoard(ctx context.Context, boardID uuid.UUID, in UpdateBoardInput, actorID uuid.UUID) (*model.Board, error) {
	need := requireEdit
	if in.Settings != nil || in.Visibility != nil {
		need = func(p permissionSet) bool { return p.CanManageSettings }
	}

	board, err := s.authorize(ctx, actorID, boardID, need)
	if err != nil {
		return nil, err
	}

	old := map[string]any{
		"title":       board.Title,
		"description": board.Description,
		"visibility":  board.Visibility,
	}

	if in.Title != nil {
		board.Title = *in.Title
	}
	if in.Description != nil {
		board.Description = *in.Description
	}
	if in.Visibility != nil {
		if *in.Visibility != model.VisibilityPrivate && *in.Visibility != model.VisibilityPublic {
			return nil, fmt.Errorf("%w: unknown visibility %q", ErrValidation, *in.Visibility)
		}
		board.Visibility = *in.Visibility
	}
	if in.Settings != nil {
		board.Settings = in.Settings
	}

	if err := s.boardRepo.Update(ctx, board); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionUpdate,
		EntityType: audit.EntityBoard,
		EntityID:   board.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  old,
		NewValues: map[string]any{
			"title":       board.Title,
			"description": board.Description,
			"visibility":  board.Visibility,
		},
	})

	s.hub.ToBoard(board.ID, eventBoardUpdate, boardPayload(board))
	return board, nil
}

// ArchiveBoard flips a board's archived flag. Archived boards are excluded
// from active reindexing: every structural mutation on them conflicts.
func (s *Sync) ArchiveBoard(ctx context.Context, boardID uuid.UUID, archived bool, actorID uuid.UUID) (*model.Board, error) {
	board, err := s.authorize(ctx, actorID, boardID, func(p permissionSet) bool { return p.CanManageSettings })
	if err != nil {
		return nil, err
	}

	if board.Archived == archived {
		return board, nil
	}

	if err := s.boardRepo.SetArchived(ctx, boardID, archived); err != nil {
		return nil, err
	}
	board.Archived = archived

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionArchive,
		EntityType: audit.EntityBoard,
		EntityID:   board.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"archived": !archived},
		NewValues:  map[string]any{"archived": archived},
	})

	s.hub.ToBoard(board.ID, eventBoardUpdate, boardPayload(board))
	s.hub.ToAdmins(eventBoardUpdate, boardPayload(board))
	return board, nil
}

func boardPayload(board *model.Board) map[string]any {
	return map[string]any{
		"id":         board.ID,
		"title":      board.Title,
		"visibility": board.Visibility,
		"archived":   board.Archived,
	}
}

package service

import (
	"context"
	"fmt"

	"taskboard/internal/audit"
	"taskboard/internal/model"

	"github.com/google/uuid"
)

// CreateComment adds a comment to a card.
func (s *Sync) CreateComment(ctx context.Context, cardID uuid.UUID, body string, actorID uuid.UUID) (*model.Comment, error) {
	_, board, err := s.loadCard(ctx, cardID, actorID, requireEdit)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		CardID:   cardID,
		AuthorID: actorID,
		Body:     body,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionCreate,
		EntityType: audit.EntityComment,
		EntityID:   comment.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		NewValues:  map[string]any{"card_id": cardID, "body": body},
	})

	s.hub.ToBoard(board.ID, eventCommentUpdate, commentPayload(comment))
	return comment, nil
}

// UpdateComment edits a comment's body. Only the author may edit.
func (s *Sync) UpdateComment(ctx context.Context, commentID uuid.UUID, body string, actorID uuid.UUID) (*model.Comment, error) {
	comment, board, err := s.loadComment(ctx, commentID, actorID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actorID {
		return nil, ErrForbidden
	}

	old := comment.Body
	comment.Body = body
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionUpdate,
		EntityType: audit.EntityComment,
		EntityID:   comment.ID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"body": old},
		NewValues:  map[string]any{"body": body},
	})

	s.hub.ToBoard(board.ID, eventCommentUpdate, commentPayload(comment))
	return comment, nil
}

// DeleteComment removes a comment. The author or anyone with delete
// capability may remove it.
func (s *Sync) DeleteComment(ctx context.Context, commentID uuid.UUID, actorID uuid.UUID) error {
	comment, board, err := s.loadComment(ctx, commentID, actorID)
	if err != nil {
		return err
	}

	if comment.AuthorID != actorID {
		grant, err := s.resolver.Resolve(ctx, actorID, board.ID)
		if err != nil {
			return err
		}
		if grant == nil || !grant.Permissions.CanDelete {
			return ErrForbidden
		}
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionDelete,
		EntityType: audit.EntityComment,
		EntityID:   commentID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"card_id": comment.CardID, "body": comment.Body},
	})

	s.hub.ToBoard(board.ID, eventCommentUpdate, map[string]any{"id": commentID, "deleted": true})
	return nil
}

func (s *Sync) loadComment(ctx context.Context, commentID, actorID uuid.UUID) (*model.Comment, *model.Board, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}
	if comment == nil {
		return nil, nil, fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
	}

	_, board, err := s.loadCard(ctx, comment.CardID, actorID, func(p permissionSet) bool { return p.CanView })
	if err != nil {
		return nil, nil, err
	}
	return comment, board, nil
}

func commentPayload(comment *model.Comment) map[string]any {
	return map[string]any{
		"id":        comment.ID,
		"card_id":   comment.CardID,
		"author_id": comment.AuthorID,
		"body":      comment.Body,
	}
}

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

// InviteMember adds a user to a board with the given role. The owner role
// cannot be granted this way: a board has exactly one active owner, fixed
// at creation.
func (s *Sync) InviteMember(ctx context.Context, boardID, userID uuid.UUID, role string, actorID uuid.UUID) (*model.BoardMember, error) {
	if !model.ValidRole(role) || role == model.RoleOwner {
		return nil, fmt.Errorf("%w: role %q cannot be granted", ErrValidation, role)
	}

	board, err := s.authorize(ctx, actorID, boardID, func(p permissionSet) bool { return p.CanInvite })
	if err != nil {
		return nil, err
	}

	if board.OwnerID == userID {
		return nil, fmt.Errorf("%w: user already owns this board", ErrConflict)
	}

	member, err := s.memberRepo.Upsert(ctx, boardID, userID, role, model.StatusActive)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionCreate,
		EntityType: audit.EntityMember,
		EntityID:   member.ID,
		BoardID:    boardID,
		ActorID:    actorID,
		NewValues:  map[string]any{"user_id": userID, "role": role, "status": member.Status},
	})

	s.hub.ToBoard(boardID, eventMemberUpdate, memberPayload(member))
	s.hub.ToUser(userID, eventMemberUpdate, memberPayload(member))
	return member, nil
}

// ChangeMemberRole rewrites a member's role. Permissions are derived from
// the role, so the change is effective on the member's very next request.
func (s *Sync) ChangeMemberRole(ctx context.Context, boardID, userID uuid.UUID, role string, actorID uuid.UUID) (*model.BoardMember, error) {
	if !model.ValidRole(role) || role == model.RoleOwner {
		return nil, fmt.Errorf("%w: role %q cannot be granted", ErrValidation, role)
	}

	board, err := s.authorize(ctx, actorID, boardID, func(p permissionSet) bool { return p.CanManageMembers })
	if err != nil {
		return nil, err
	}

	if board.OwnerID == userID {
		return nil, fmt.Errorf("%w: the board owner's role cannot be changed", ErrConflict)
	}

	member, err := s.memberRepo.GetByBoardAndUser(ctx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: membership for user %s", ErrNotFound, userID)
	}

	oldRole := member.Role
	if err := s.memberRepo.UpdateRole(ctx, boardID, userID, role); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, fmt.Errorf("%w: membership for user %s", ErrNotFound, userID)
		}
		return nil, err
	}
	member.Role = role

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionUpdate,
		EntityType: audit.EntityMember,
		EntityID:   member.ID,
		BoardID:    boardID,
		ActorID:    actorID,
		OldValues:  map[string]any{"role": oldRole},
		NewValues:  map[string]any{"role": role},
	})

	s.hub.ToBoard(boardID, eventMemberUpdate, memberPayload(member))
	s.hub.ToUser(userID, eventMemberUpdate, memberPayload(member))
	return member, nil
}

// RemoveMember drops a user from a board. The owner cannot be removed.
func (s *Sync) RemoveMember(ctx context.Context, boardID, userID uuid.UUID, actorID uuid.UUID) error {
	board, err := s.authorize(ctx, actorID, boardID, func(p permissionSet) bool { return p.CanManageMembers })
	if err != nil {
		return err
	}

	if board.OwnerID == userID {
		return fmt.Errorf("%w: the board owner cannot be removed", ErrConflict)
	}

	member, err := s.memberRepo.GetByBoardAndUser(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("%w: membership for user %s", ErrNotFound, userID)
	}

	if err := s.memberRepo.Remove(ctx, boardID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return fmt.Errorf("%w: membership for user %s", ErrNotFound, userID)
		}
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionDelete,
		EntityType: audit.EntityMember,
		EntityID:   member.ID,
		BoardID:    boardID,
		ActorID:    actorID,
		OldValues:  map[string]any{"user_id": userID, "role": member.Role},
	})

	s.hub.ToBoard(boardID, eventMemberUpdate, map[string]any{"user_id": userID, "removed": true})
	s.hub.ToUser(userID, eventMemberUpdate, map[string]any{"board_id": boardID, "removed": true})
	return nil
}

func memberPayload(member *model.BoardMember) map[string]any {
	return map[string]any{
		"board_id": member.BoardID,
		"user_id":  member.UserID,
		"role":     member.Role,
		"status":   member.Status,
	}
}

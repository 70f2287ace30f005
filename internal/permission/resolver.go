// Package permission maps a (user, board) pair to a role and a capability
// set. Permissions are derived from the role on every resolve and are never
// persisted, so a role change takes effect with no stale window.
package permission

import (
	"context"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/google/uuid"
)

type Permissions struct {
	CanView           bool `json:"can_view"`
	CanEdit           bool `json:"can_edit"`
	CanDelete         bool `json:"can_delete"`
	CanInvite         bool `json:"can_invite"`
	CanManageMembers  bool `json:"can_manage_members"`
	CanManageSettings bool `json:"can_manage_settings"`
}

// Grant is the resolver's output for one (user, board) pair.
type Grant struct {
	Role        string
	Permissions Permissions
}

// ForRole derives the capability set for a role. The mapping is fixed and
// total: unknown roles get nothing.
func ForRole(role string) Permissions {
	switch role {
	case model.RoleOwner:
		return Permissions{
			CanView:           true,
			CanEdit:           true,
			CanDelete:         true,
			CanInvite:         true,
			CanManageMembers:  true,
			CanManageSettings: true,
		}
	case model.RoleAdmin:
		return Permissions{
			CanView:          true,
			CanEdit:          true,
			CanDelete:        true,
			CanInvite:        true,
			CanManageMembers: true,
		}
	case model.RoleEditor:
		return Permissions{
			CanView: true,
			CanEdit: true,
		}
	case model.RoleViewer:
		return Permissions{
			CanView: true,
		}
	default:
		return Permissions{}
	}
}

type Resolver struct {
	boardRepo  *repository.BoardRepository
	memberRepo *repository.BoardMemberRepository
}

func NewResolver(boardRepo *repository.BoardRepository, memberRepo *repository.BoardMemberRepository) *Resolver {
	return &Resolver{boardRepo: boardRepo, memberRepo: memberRepo}
}

// Resolve returns the grant for userID on boardID, or nil when the user has
// no access. Board owners get the full set without a membership lookup.
func (r *Resolver) Resolve(ctx context.Context, userID, boardID uuid.UUID) (*Grant, error) {
	board, err := r.boardRepo.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, nil
	}

	if board.OwnerID == userID {
		return &Grant{Role: model.RoleOwner, Permissions: ForRole(model.RoleOwner)}, nil
	}

	member, err := r.memberRepo.GetActive(ctx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, nil
	}

	return &Grant{Role: member.Role, Permissions: ForRole(member.Role)}, nil
}

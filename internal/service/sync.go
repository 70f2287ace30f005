// Package service orchestrates structural mutations against the board
// model. Every mutation follows the same path: permission check, not-found
// checks, no-op detection, lock acquisition, transactional reindex and
// persistence, audit record, broadcast, and a guaranteed lock release.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"taskboard/internal/audit"
	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/reindex"
	"taskboard/internal/repository"

	"github.com/google/uuid"
)

// Broadcaster fans events out to connected subscriber groups. The realtime
// hub satisfies it; tests use an in-memory fake.
type Broadcaster interface {
	ToBoard(boardID uuid.UUID, event string, payload any)
	ToUser(userID uuid.UUID, event string, payload any)
	ToAdmins(event string, payload any)
}

// Locker serializes structural mutations on a logical resource name.
type Locker interface {
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, resource, owner string)
	IsLocked(ctx context.Context, resource string) (bool, error)
}

// Event names re-declared here so the service does not depend on the
// realtime package directly.
const (
	eventBoardUpdate   = "board:update"
	eventColumnUpdate  = "column:update"
	eventCardUpdate    = "card:update"
	eventCommentUpdate = "comment:update"
	eventMemberUpdate  = "member:update"
)

type Sync struct {
	boardRepo   *repository.BoardRepository
	columnRepo  *repository.ColumnRepository
	cardRepo    *repository.CardRepository
	memberRepo  *repository.BoardMemberRepository
	commentRepo *repository.CommentRepository
	resolver    *permission.Resolver
	locks       Locker
	recorder    *audit.Recorder
	hub         Broadcaster

	moveLockTTL time.Duration
	editLockTTL time.Duration
}

func NewSync(
	boardRepo *repository.BoardRepository,
	columnRepo *repository.ColumnRepository,
	cardRepo *repository.CardRepository,
	memberRepo *repository.BoardMemberRepository,
	commentRepo *repository.CommentRepository,
	resolver *permission.Resolver,
	locks Locker,
	recorder *audit.Recorder,
	hub Broadcaster,
	moveLockTTL, editLockTTL time.Duration,
) *Sync {
	return &Sync{
		boardRepo:   boardRepo,
		columnRepo:  columnRepo,
		cardRepo:    cardRepo,
		memberRepo:  memberRepo,
		commentRepo: commentRepo,
		resolver:    resolver,
		locks:       locks,
		recorder:    recorder,
		hub:         hub,
		moveLockTTL: moveLockTTL,
		editLockTTL: editLockTTL,
	}
}

// authorize resolves the actor's grant on a board and checks one capability.
// Permission failures are detected before any lock is taken.
func (s *Sync) authorize(ctx context.Context, actorID, boardID uuid.UUID, need func(permission.Permissions) bool) (*model.Board, error) {
	board, err := s.boardRepo.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}

	grant, err := s.resolver.Resolve(ctx, actorID, boardID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !need(grant.Permissions) {
		return nil, ErrForbidden
	}
	return board, nil
}

// permissionSet aliases the resolver's capability set for the capability
// predicates passed to authorize.
type permissionSet = permission.Permissions

func requireEdit(p permissionSet) bool   { return p.CanEdit }
func requireDelete(p permissionSet) bool { return p.CanDelete }

func checkActive(board *model.Board) error {
	if board.Archived {
		return fmt.Errorf("%w: board is archived", ErrConflict)
	}
	return nil
}

func cardLockResource(cardID uuid.UUID) string {
	return "card:move:" + cardID.String()
}

func columnsLockResource(boardID uuid.UUID) string {
	return "board:columns:" + boardID.String()
}

func editLockResource(cardID uuid.UUID) string {
	return "card:edit:" + cardID.String()
}

func cardsLockResource(columnID uuid.UUID) string {
	return "column:cards:" + columnID.String()
}

// cardMoveResources names the lock set for a structural card mutation: the
// card's own move lock plus the card-list lock of every affected column.
// Column locks are sorted so two moves touching the same pair of columns
// always acquire them in the same order.
func cardMoveResources(cardID uuid.UUID, columnIDs ...uuid.UUID) []string {
	cols := make([]string, 0, len(columnIDs))
	for _, id := range columnIDs {
		cols = append(cols, cardsLockResource(id))
	}
	sort.Strings(cols)

	resources := []string{cardLockResource(cardID)}
	for i, col := range cols {
		if i > 0 && col == cols[i-1] {
			continue
		}
		resources = append(resources, col)
	}
	return resources
}

// acquireAll takes every resource in the given order, backing out the ones
// already held when a later acquire is denied or fails.
func (s *Sync) acquireAll(ctx context.Context, owner string, resources []string) (release func(), acquired bool, err error) {
	held := make([]string, 0, len(resources))
	backout := func() {
		for i := len(held) - 1; i >= 0; i-- {
			s.locks.Release(ctx, held[i], owner)
		}
	}
	for _, resource := range resources {
		ok, err := s.locks.Acquire(ctx, resource, owner, s.moveLockTTL)
		if err != nil {
			backout()
			return nil, false, err
		}
		if !ok {
			backout()
			return nil, false, nil
		}
		held = append(held, resource)
	}
	return backout, true, nil
}

// MoveCard moves a card to a target column and position. Same-column,
// same-position moves are no-ops that emit neither audit nor broadcast.
func (s *Sync) MoveCard(ctx context.Context, cardID, targetColumnID uuid.UUID, targetPosition int, actorID uuid.UUID) (*model.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, fmt.Errorf("%w: card %s", ErrNotFound, cardID)
		}
		return nil, err
	}

	sourceColumn, err := s.columnRepo.GetByID(ctx, card.ColumnID)
	if err != nil {
		return nil, err
	}
	if sourceColumn == nil {
		return nil, fmt.Errorf("%w: column %s", ErrNotFound, card.ColumnID)
	}

	targetColumn := sourceColumn
	if targetColumnID != card.ColumnID {
		targetColumn, err = s.columnRepo.GetByID(ctx, targetColumnID)
		if err != nil {
			return nil, err
		}
		if targetColumn == nil {
			return nil, fmt.Errorf("%w: column %s", ErrNotFound, targetColumnID)
		}
		if targetColumn.BoardID != sourceColumn.BoardID {
			return nil, fmt.Errorf("%w: target column belongs to a different board", ErrValidation)
		}
	}

	board, err := s.authorize(ctx, actorID, sourceColumn.BoardID, requireEdit)
	if err != nil {
		return nil, err
	}
	if err := checkActive(board); err != nil {
		return nil, err
	}

	// No-op move: nothing changes, nothing is recorded or broadcast. The
	// target is checked both raw and clamped, so moving the last card to an
	// out-of-range position stays silent as well.
	if card.ColumnID == targetColumnID && card.Position == targetPosition {
		return card, nil
	}
	if card.ColumnID == targetColumnID {
		count, err := s.cardRepo.CountByColumnID(ctx, targetColumnID)
		if err != nil {
			return nil, err
		}
		if reindex.ClampMove(targetPosition, int(count)) == card.Position {
			return card, nil
		}
	}

	owner := uuid.NewString()
	release, ok, err := s.acquireAll(ctx, owner, cardMoveResources(cardID, card.ColumnID, targetColumnID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: card is being moved by another user", ErrConflict)
	}
	defer release()

	if targetColumn.WIPLimit != nil && targetColumnID != card.ColumnID {
		count, err := s.cardRepo.CountByColumnID(ctx, targetColumnID)
		if err != nil {
			return nil, err
		}
		if count >= int64(*targetColumn.WIPLimit) {
			return nil, fmt.Errorf("%w: column WIP limit reached", ErrConflict)
		}
	}

	updated, err := s.cardRepo.Move(ctx, cardID, targetColumnID, targetPosition)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, fmt.Errorf("%w: card %s", ErrNotFound, cardID)
		}
		return nil, err
	}

	// The sibling count may shift between the clamp check and the lock. When
	// the repository clamps the target back to the card's current slot, the
	// move changed nothing and stays silent.
	if updated.ColumnID == card.ColumnID && updated.Position == card.Position {
		return updated, nil
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionMove,
		EntityType: audit.EntityCard,
		EntityID:   cardID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"column_id": card.ColumnID, "position": card.Position},
		NewValues:  map[string]any{"column_id": updated.ColumnID, "position": updated.Position},
	})

	s.hub.ToBoard(board.ID, eventCardUpdate, cardPayload(updated))
	return updated, nil
}

// MoveColumn moves a column to a target position within its board.
func (s *Sync) MoveColumn(ctx context.Context, columnID uuid.UUID, targetPosition int, actorID uuid.UUID) (*model.Column, error) {
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

	if column.Position == targetPosition {
		return column, nil
	}
	count, err := s.columnRepo.CountByBoardID(ctx, column.BoardID)
	if err != nil {
		return nil, err
	}
	if reindex.ClampMove(targetPosition, int(count)) == column.Position {
		return column, nil
	}

	owner := uuid.NewString()
	resource := columnsLockResource(board.ID)
	ok, err := s.locks.Acquire(ctx, resource, owner, s.moveLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: board columns are being reordered by another user", ErrConflict)
	}
	defer s.locks.Release(ctx, resource, owner)

	updated, err := s.columnRepo.Move(ctx, columnID, targetPosition)
	if err != nil {
		if errors.Is(err, repository.ErrColumnNotFound) {
			return nil, fmt.Errorf("%w: column %s", ErrNotFound, columnID)
		}
		return nil, err
	}

	if updated.Position == column.Position {
		return updated, nil
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionMove,
		EntityType: audit.EntityColumn,
		EntityID:   columnID,
		BoardID:    board.ID,
		ActorID:    actorID,
		OldValues:  map[string]any{"position": column.Position},
		NewValues:  map[string]any{"position": updated.Position},
	})

	s.hub.ToBoard(board.ID, eventColumnUpdate, columnPayload(updated))
	return updated, nil
}

// ReorderColumns rewrites a board's column order in one operation. The id
// list must cover the board's columns exactly.
func (s *Sync) ReorderColumns(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID, actorID uuid.UUID) error {
	board, err := s.authorize(ctx, actorID, boardID, requireEdit)
	if err != nil {
		return err
	}
	if err := checkActive(board); err != nil {
		return err
	}

	seen := make(map[uuid.UUID]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate column id %s", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	owner := uuid.NewString()
	resource := columnsLockResource(boardID)
	ok, err := s.locks.Acquire(ctx, resource, owner, s.moveLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: board columns are being reordered by another user", ErrConflict)
	}
	defer s.locks.Release(ctx, resource, owner)

	if err := s.columnRepo.Reorder(ctx, boardID, orderedIDs); err != nil {
		if errors.Is(err, repository.ErrColumnNotFound) {
			return fmt.Errorf("%w: column list does not match board", ErrValidation)
		}
		return err
	}

	ids := make([]string, len(orderedIDs))
	for i, id := range orderedIDs {
		ids[i] = id.String()
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:     model.ActionReorder,
		EntityType: audit.EntityBoard,
		EntityID:   boardID,
		BoardID:    boardID,
		ActorID:    actorID,
		NewValues:  map[string]any{"column_order": ids},
	})

	s.hub.ToBoard(boardID, eventBoardUpdate, map[string]any{"board_id": boardID, "column_order": ids})
	return nil
}

func cardPayload(card *model.Card) map[string]any {
	return map[string]any{
		"id":        card.ID,
		"column_id": card.ColumnID,
		"title":     card.Title,
		"position":  card.Position,
		"priority":  card.Priority,
	}
}

func columnPayload(column *model.Column) map[string]any {
	return map[string]any{
		"id":       column.ID,
		"board_id": column.BoardID,
		"title":    column.Title,
		"position": column.Position,
	}
}

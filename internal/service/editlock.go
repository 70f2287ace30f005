package service

import (
	"context"

	"github.com/google/uuid"
)

// Card edit lock events streamed over the same transport as mutations.
const (
	eventCardLocked     = "card:edit:locked"
	eventCardLockFailed = "card:edit:lock_failed"
	eventCardUnlocked   = "card:edit:unlocked"
)

// LockCardForEdit takes the long-lived interactive editing lock on a card.
// The actor's id is the owner token, so the holder can release from any of
// their sessions. A denial is broadcast only to the requester.
func (s *Sync) LockCardForEdit(ctx context.Context, cardID, actorID uuid.UUID) (bool, error) {
	card, board, err := s.loadCard(ctx, cardID, actorID, requireEdit)
	if err != nil {
		return false, err
	}

	ok, err := s.locks.Acquire(ctx, editLockResource(card.ID), actorID.String(), s.editLockTTL)
	if err != nil {
		return false, err
	}

	payload := map[string]any{"card_id": cardID, "user_id": actorID}
	if !ok {
		s.hub.ToUser(actorID, eventCardLockFailed, payload)
		return false, nil
	}

	s.hub.ToBoard(board.ID, eventCardLocked, payload)
	return true, nil
}

// UnlockCardForEdit releases the editing lock if the actor still holds it.
// Releasing a lock that expired or moved on is a silent no-op.
func (s *Sync) UnlockCardForEdit(ctx context.Context, cardID, actorID uuid.UUID) error {
	card, board, err := s.loadCard(ctx, cardID, actorID, requireEdit)
	if err != nil {
		return err
	}

	s.locks.Release(ctx, editLockResource(card.ID), actorID.String())
	s.hub.ToBoard(board.ID, eventCardUnlocked, map[string]any{"card_id": cardID, "user_id": actorID})
	return nil
}

// IsCardLocked reports whether a card currently carries an editing lock.
func (s *Sync) IsCardLocked(ctx context.Context, cardID uuid.UUID) (bool, error) {
	return s.locks.IsLocked(ctx, editLockResource(cardID))
}

// Package audit appends immutable records of every state transition. The
// write is attempted synchronously within the request that caused it, but a
// failure is only logged: it never rolls back or blocks the mutation.
package audit

import (
	"context"
	"log"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/google/uuid"
)

// Entity types recorded in the trail.
const (
	EntityBoard   = "board"
	EntityColumn  = "column"
	EntityCard    = "card"
	EntityComment = "comment"
	EntityMember  = "board_member"
)

type Entry struct {
	Action     string
	EntityType string
	EntityID   uuid.UUID
	BoardID    uuid.UUID
	ActorID    uuid.UUID
	OldValues  map[string]any
	NewValues  map[string]any
	Metadata   map[string]any
}

type Recorder struct {
	repo *repository.AuditRepository
}

func NewRecorder(repo *repository.AuditRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Record appends one audit event. Errors are swallowed after logging so the
// primary mutation's outcome never depends on the trail.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	event := &model.AuditEvent{
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		BoardID:    entry.BoardID,
		ActorID:    entry.ActorID,
		OldValues:  entry.OldValues,
		NewValues:  entry.NewValues,
		Metadata:   entry.Metadata,
	}
	if err := r.repo.Create(ctx, event); err != nil {
		log.Printf("⚠️  Audit record failed for %s %s %s: %v", entry.Action, entry.EntityType, entry.EntityID, err)
	}
}

package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// QueueManager keeps the per-specialty waiting list. Ordering is
// priority tier first (urgente > alta > normal > baja), strict FIFO
// inside a tier.
type QueueManager struct {
	repo Repository
}

func NewQueueManager(repo Repository) *QueueManager {
	return &QueueManager{repo: repo}
}

func (q *QueueManager) Enqueue(ctx context.Context, patientID, specialtyID uuid.UUID, priority Priority, reason string) (*QueueEntry, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	entry := &QueueEntry{
		PatientID:   patientID,
		SpecialtyID: specialtyID,
		Priority:    priority,
		Reason:      reason,
	}
	return q.repo.EnqueueEntry(ctx, entry)
}

// PromoteNext peeks at the best pending entry without removing it. The
// caller books it first and only then resolves the entry, so a failed
// booking leaves the queue untouched.
func (q *QueueManager) PromoteNext(ctx context.Context, specialtyID uuid.UUID) (*QueueEntry, error) {
	return q.repo.NextPendingEntry(ctx, specialtyID)
}

// Resolve moves a pending entry into a terminal state and records the
// outcome. Terminal states are final; resolving an already-closed entry
// returns ErrEntryClosed.
func (q *QueueManager) Resolve(ctx context.Context, entryID uuid.UUID, status QueueStatus, outcome string) (*QueueEntry, error) {
	switch status {
	case QueueReassigned, QueueCancelled, QueueExpired:
	default:
		return nil, fmt.Errorf("%q is not a terminal queue status", status)
	}
	return q.repo.ResolveEntry(ctx, entryID, status, outcome)
}

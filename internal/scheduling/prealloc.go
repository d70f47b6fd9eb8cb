package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PreallocationResolver consumes one unit from a pre-reserved capacity
// block and links it to a freshly created appointment. Consumption is a
// conditional update on assigned_count: under concurrent bookings for
// the same doctor and day only one writer wins, the loser retries once
// against a re-read block.
type PreallocationResolver struct {
	repo Repository
	now  func() time.Time
}

func NewPreallocationResolver(repo Repository) *PreallocationResolver {
	return &PreallocationResolver{
		repo: repo,
		now:  time.Now,
	}
}

const consumeAttempts = 2

// ResolveAndConsume picks the eligible block with the oldest
// reservation date (earliest reserved wins) and consumes one unit.
// Returns ErrBlockExhausted when no block has units left, including
// after the optimistic-write retry.
func (p *PreallocationResolver) ResolveAndConsume(ctx context.Context, doctorID uuid.UUID, targetDay time.Time, appointmentID uuid.UUID) (*PreallocationBlock, error) {
	asOf := truncateDay(p.now())

	var consumed *PreallocationBlock
	err := p.repo.InTx(ctx, func(tx Repository) error {
		for attempt := 0; attempt < consumeAttempts; attempt++ {
			block, err := tx.FindConsumableBlock(ctx, doctorID, truncateDay(targetDay), asOf)
			if err != nil {
				if errors.Is(err, ErrBlockNotFound) {
					return ErrBlockExhausted
				}
				return err
			}

			ok, err := tx.ConsumeBlock(ctx, block.ID, block.AssignedCount)
			if err != nil {
				return err
			}
			if !ok {
				// Lost the conditional write to a concurrent booking.
				continue
			}

			if err := tx.LinkAppointmentBlock(ctx, appointmentID, block.ID); err != nil {
				return err
			}

			block.AssignedCount++
			consumed = block
			return nil
		}
		return ErrBlockExhausted
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// Release hands one unit back when the linked appointment is cancelled.
// Callers must invoke it at most once per appointment; the idempotent
// cancel in the orchestrator guarantees that.
func (p *PreallocationResolver) Release(ctx context.Context, blockID uuid.UUID) error {
	return p.repo.ReleaseBlock(ctx, blockID)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

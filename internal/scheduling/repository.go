package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the core.
// InTx yields a Repository bound to a single transaction; conflict
// checks and the write they guard must run through that bound copy.
type Repository interface {
	InTx(ctx context.Context, fn func(Repository) error) error

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	// CancelAppointment is conditional on status <> cancelled. The bool
	// is false when the appointment was already cancelled (no-op).
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, bool, error)
	// CountOverlapping counts non-cancelled appointments for the
	// resource whose half-open interval overlaps iv.
	CountOverlapping(ctx context.Context, res ResourceKind, resourceID uuid.UUID, iv Interval, excludeID *uuid.UUID) (int, error)

	// Availability windows
	GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	FindContainingWindow(ctx context.Context, doctorID uuid.UUID, iv Interval) (*AvailabilityWindow, error)
	AdjustWindowBooked(ctx context.Context, windowID uuid.UUID, delta int) error
	// RecountWindow rescans non-cancelled appointments linked to the
	// window and corrects booked_count, returning the fresh value.
	RecountWindow(ctx context.Context, windowID uuid.UUID) (int, error)

	// Preallocation blocks
	FindConsumableBlock(ctx context.Context, doctorID uuid.UUID, targetDay, asOf time.Time) (*PreallocationBlock, error)
	// ConsumeBlock increments assigned_count only if it still equals
	// expectedAssigned. Returns false when the conditional write lost.
	ConsumeBlock(ctx context.Context, blockID uuid.UUID, expectedAssigned int) (bool, error)
	ReleaseBlock(ctx context.Context, blockID uuid.UUID) error
	LinkAppointmentBlock(ctx context.Context, appointmentID, blockID uuid.UUID) error

	// Waiting queue
	EnqueueEntry(ctx context.Context, e *QueueEntry) (*QueueEntry, error)
	NextPendingEntry(ctx context.Context, specialtyID uuid.UUID) (*QueueEntry, error)
	// ResolveEntry transitions a pending entry to a terminal status.
	ResolveEntry(ctx context.Context, entryID uuid.UUID, status QueueStatus, outcome string) (*QueueEntry, error)
}

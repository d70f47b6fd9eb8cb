package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrWindowNotFound      = errors.New("availability window not found")
	ErrBlockNotFound       = errors.New("preallocation block not found")
	ErrEntryNotFound       = errors.New("waiting entry not found")

	// ErrInvalidInterval covers malformed intervals and non-positive durations.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidPriority rejects enqueue requests outside the known tiers.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrNoWindow means no availability window covers the requested
	// interval. Soft: booking proceeds without a window link.
	ErrNoWindow = errors.New("no availability window matches")

	// ErrBlockExhausted means every eligible preallocation block ran out
	// of units, including after the consume retry. Soft as well.
	ErrBlockExhausted = errors.New("preallocation capacity exhausted")

	ErrQueueEmpty = errors.New("waiting queue is empty")

	// ErrEntryClosed is returned when resolving a waiting entry that
	// already reached a terminal state.
	ErrEntryClosed = errors.New("waiting entry already resolved")
)

// ConflictError reports an overlap with an existing active appointment,
// identifying which resource (doctor, patient or room) is double booked.
type ConflictError struct {
	Resource      ResourceKind
	ResourceID    uuid.UUID
	ConflictCount int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already has an overlapping appointment", e.Resource, e.ResourceID)
}

// InfraError wraps store failures so callers can retry instead of
// treating them as business outcomes.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

func infraErr(op string, err error) error {
	return &InfraError{Op: op, Err: err}
}

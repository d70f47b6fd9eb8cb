package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConflictDetector answers whether a candidate interval collides with an
// existing active appointment holding the same resource.
type ConflictDetector struct {
	repo Repository
}

func NewConflictDetector(repo Repository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// HasConflict is a pure read. excludeID lets a reschedule ignore the
// appointment being moved.
func (d *ConflictDetector) HasConflict(ctx context.Context, res ResourceKind, resourceID uuid.UUID, iv Interval, excludeID *uuid.UUID) (bool, error) {
	count, err := d.repo.CountOverlapping(ctx, res, resourceID, iv, excludeID)
	if err != nil {
		return false, fmt.Errorf("conflict check %s: %w", res, err)
	}
	return count > 0, nil
}

// Check runs the doctor, patient and room checks in order and returns
// a *ConflictError naming the first resource that collides. The room
// check is a no-op when roomID is nil.
func (d *ConflictDetector) Check(ctx context.Context, doctorID, patientID uuid.UUID, roomID *uuid.UUID, iv Interval, excludeID *uuid.UUID) error {
	checks := []struct {
		res ResourceKind
		id  uuid.UUID
		run bool
	}{
		{ResourceDoctor, doctorID, true},
		{ResourcePatient, patientID, true},
		{ResourceRoom, uuid.Nil, false},
	}
	if roomID != nil {
		checks[2].id = *roomID
		checks[2].run = true
	}

	for _, c := range checks {
		if !c.run {
			continue
		}
		conflict, err := d.HasConflict(ctx, c.res, c.id, iv, excludeID)
		if err != nil {
			return err
		}
		if conflict {
			return &ConflictError{Resource: c.res, ResourceID: c.id, ConflictCount: 1}
		}
	}

	return nil
}

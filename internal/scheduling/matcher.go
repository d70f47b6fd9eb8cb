package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// AvailabilityMatcher finds a window on the candidate's calendar day
// that fully contains the interval and still has capacity. The match is
// advisory; callers treat ErrNoWindow as a warning, not a failure.
type AvailabilityMatcher struct {
	repo Repository
}

func NewAvailabilityMatcher(repo Repository) *AvailabilityMatcher {
	return &AvailabilityMatcher{repo: repo}
}

// FindWindow prefers the earliest-starting eligible window, with the
// lowest id as a stable tie-break.
func (m *AvailabilityMatcher) FindWindow(ctx context.Context, doctorID uuid.UUID, iv Interval) (*AvailabilityWindow, error) {
	if !iv.Start.Before(iv.End) {
		return nil, ErrInvalidInterval
	}
	return m.repo.FindContainingWindow(ctx, doctorID, iv)
}

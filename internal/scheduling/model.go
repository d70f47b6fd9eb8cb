package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type AppointmentType string

const (
	TypeInPerson AppointmentType = "in_person"
	TypeRemote   AppointmentType = "remote"
)

// ResourceKind identifies which shared resource a conflict check runs against.
type ResourceKind string

const (
	ResourceDoctor  ResourceKind = "doctor"
	ResourcePatient ResourceKind = "patient"
	ResourceRoom    ResourceKind = "room"
)

type Priority string

const (
	PriorityBaja    Priority = "baja"
	PriorityNormal  Priority = "normal"
	PriorityAlta    Priority = "alta"
	PriorityUrgente Priority = "urgente"
)

// Rank orders priorities for queue promotion, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgente:
		return 3
	case PriorityAlta:
		return 2
	case PriorityNormal:
		return 1
	case PriorityBaja:
		return 0
	default:
		return -1
	}
}

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueReassigned QueueStatus = "reassigned"
	QueueCancelled  QueueStatus = "cancelled"
	QueueExpired    QueueStatus = "expired"
)

// Interval is a half-open time range [Start, End). Touching endpoints
// do not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, durationMin int) (Interval, error) {
	if start.IsZero() {
		return Interval{}, ErrInvalidInterval
	}
	if durationMin <= 0 {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{
		Start: start,
		End:   start.Add(time.Duration(durationMin) * time.Minute),
	}, nil
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Day truncates the interval start to its calendar date in UTC.
func (iv Interval) Day() time.Time {
	y, m, d := iv.Start.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	SpecialtyID  uuid.UUID
	LocationID   uuid.UUID
	RoomID       *uuid.UUID
	WindowID     *uuid.UUID
	BlockID      *uuid.UUID
	StartsAt     time.Time
	DurationMin  int
	Type         AppointmentType
	Status       AppointmentStatus
	Reason       string
	CancelReason *string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Appointment) Interval() Interval {
	return Interval{
		Start: a.StartsAt,
		End:   a.StartsAt.Add(time.Duration(a.DurationMin) * time.Minute),
	}
}

type AvailabilityWindow struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	SpecialtyID uuid.UUID
	LocationID  uuid.UUID
	Day         time.Time
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
	BookedCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contains reports whether the window fully covers the candidate interval.
func (w *AvailabilityWindow) Contains(iv Interval) bool {
	return !iv.Start.Before(w.StartsAt) && !iv.End.After(w.EndsAt)
}

func (w *AvailabilityWindow) HasCapacity() bool {
	return w.BookedCount < w.Capacity
}

type PreallocationBlock struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	TargetDay     time.Time
	ReservedOn    time.Time
	SlotCount     int
	AssignedCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConsumableOn reports whether the block can hand out a unit on the
// given date: its reservation date has arrived and units remain.
func (b *PreallocationBlock) ConsumableOn(day time.Time) bool {
	return !b.ReservedOn.After(day) && b.AssignedCount < b.SlotCount
}

type QueueEntry struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	SpecialtyID uuid.UUID
	Priority    Priority
	Reason      string
	Status      QueueStatus
	Outcome     *string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/billing"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/notify"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/observability/metrics"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/redisclient"
)

// ErrAppointmentCancelled guards mutations of an appointment that has
// already been cancelled.
var ErrAppointmentCancelled = errors.New("appointment is cancelled")

// Service composes the conflict detector, availability matcher,
// preallocation resolver, billing cascader and waiting queue into the
// three client operations. Conflict checks and the write they protect
// run inside one transaction, the whole section under a per-doctor-day
// lock; enrichment (preallocation link, billing, notification) runs as
// independent post-commit effects that are logged but never joined into
// the primary result.
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	prealloc *PreallocationResolver
	queue    *QueueManager
	billing  *billing.Cascader
	notifier notify.Notifier
	metrics  *metrics.SchedulingMetrics
}

func NewService(repo Repository, locker redisclient.Locker, cascader *billing.Cascader, notifier notify.Notifier, m *metrics.SchedulingMetrics) *Service {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		prealloc: NewPreallocationResolver(repo),
		queue:    NewQueueManager(repo),
		billing:  cascader,
		notifier: notifier,
		metrics:  m,
	}
}

type CreateRequest struct {
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	SpecialtyID   uuid.UUID
	LocationID    uuid.UUID
	RoomID        *uuid.UUID
	WindowID      *uuid.UUID
	ServiceID     *uuid.UUID
	SpecialtyName string
	StartsAt      time.Time
	DurationMin   int
	Type          AppointmentType
	Confirmed     bool
	Reason        string
	CreatedBy     string
	// Manual marks staff-created bookings, which trigger the
	// fire-and-forget patient notification.
	Manual bool
}

type CreateResult struct {
	Appointment *Appointment
	Billing     *billing.Record
	Warnings    []string
}

const (
	warnNoWindow         = "no availability window covers the requested interval"
	warnWindowFull       = "availability window has no remaining capacity, appointment left unlinked"
	warnBlockExhausted   = "preallocation capacity exhausted, appointment left unlinked"
	warnBillingSkipped   = "billing could not be resolved, skipped"
	warnPromotionSkipped = "queue candidate could not be booked into the freed slot"
)

func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	start := time.Now()

	res, err := s.createAppointment(ctx, req)

	s.metrics.ObserveLatency("create", time.Since(start).Seconds())
	switch {
	case err == nil:
		s.metrics.ObserveBooking("create", "created")
	default:
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveBooking("create", "conflict")
			s.metrics.ObserveConflict(string(conflict.Resource))
		} else {
			s.metrics.ObserveBooking("create", "error")
		}
	}

	return res, err
}

func (s *Service) createAppointment(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	iv, err := NewInterval(req.StartsAt, req.DurationMin)
	if err != nil {
		return nil, err
	}
	if req.Type != TypeInPerson && req.Type != TypeRemote {
		return nil, fmt.Errorf("%w: unknown appointment type %q", ErrInvalidInterval, req.Type)
	}

	status := StatusPending
	if req.Confirmed {
		status = StatusConfirmed
	}

	result := &CreateResult{}
	var created *Appointment

	err = s.locker.WithAgendaLock(ctx, req.DoctorID, iv.Day(), func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			detector := NewConflictDetector(tx)
			if err := detector.Check(lockCtx, req.DoctorID, req.PatientID, req.RoomID, iv, nil); err != nil {
				return err
			}

			// A supplied window gets the same scrutiny as a matched one:
			// it must belong to the doctor, contain the interval and
			// still have capacity, otherwise the booking proceeds
			// unlinked with a warning.
			windowID := req.WindowID
			if windowID != nil {
				w, err := tx.GetWindowByID(lockCtx, *windowID)
				if err != nil {
					return err
				}
				switch {
				case w.DoctorID != req.DoctorID || !w.Contains(iv):
					windowID = nil
					result.Warnings = append(result.Warnings, warnNoWindow)
				case !w.HasCapacity():
					windowID = nil
					result.Warnings = append(result.Warnings, warnWindowFull)
				}
			} else {
				w, err := NewAvailabilityMatcher(tx).FindWindow(lockCtx, req.DoctorID, iv)
				switch {
				case err == nil:
					windowID = &w.ID
				case errors.Is(err, ErrNoWindow):
					result.Warnings = append(result.Warnings, warnNoWindow)
				default:
					return err
				}
			}

			a := &Appointment{
				PatientID:   req.PatientID,
				DoctorID:    req.DoctorID,
				SpecialtyID: req.SpecialtyID,
				LocationID:  req.LocationID,
				RoomID:      req.RoomID,
				WindowID:    windowID,
				StartsAt:    req.StartsAt,
				DurationMin: req.DurationMin,
				Type:        req.Type,
				Status:      status,
				Reason:      req.Reason,
				CreatedBy:   req.CreatedBy,
			}

			created, err = tx.CreateAppointment(lockCtx, a)
			if err != nil {
				return err
			}

			if windowID != nil {
				if err := tx.AdjustWindowBooked(lockCtx, *windowID, 1); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	result.Appointment = created
	s.runPostCommitEffects(ctx, req, result)

	if req.Manual {
		s.dispatchNotice(created)
	}

	return result, nil
}

// runPostCommitEffects performs the best-effort enrichment steps after
// the appointment transaction committed. Each failure is logged and the
// operation continues.
func (s *Service) runPostCommitEffects(ctx context.Context, req CreateRequest, result *CreateResult) {
	created := result.Appointment

	block, err := s.prealloc.ResolveAndConsume(ctx, created.DoctorID, created.Interval().Day(), created.ID)
	switch {
	case err == nil:
		created.BlockID = &block.ID
	case errors.Is(err, ErrBlockExhausted):
		result.Warnings = append(result.Warnings, warnBlockExhausted)
	default:
		log.Printf("preallocation consume failed for appointment %s: %v", created.ID, err)
	}

	if s.billing != nil {
		rec, err := s.billing.Cascade(ctx, billing.CascadeInput{
			AppointmentID: created.ID,
			DoctorID:      created.DoctorID,
			ServiceID:     req.ServiceID,
			SpecialtyName: req.SpecialtyName,
		})
		if err != nil {
			result.Warnings = append(result.Warnings, warnBillingSkipped)
			log.Printf("billing cascade failed for appointment %s: %v", created.ID, err)
		} else {
			result.Billing = rec
		}
	}
}

func (s *Service) dispatchNotice(a *Appointment) {
	n := notify.AppointmentNotice{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		SpecialtyID:   a.SpecialtyID,
		LocationID:    a.LocationID,
		StartsAt:      a.StartsAt,
		DurationMin:   a.DurationMin,
		Reason:        a.Reason,
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Send(sendCtx, n); err != nil {
			log.Printf("notification dispatch failed for appointment %s: %v", a.ID, err)
		}
	}()
}

// RescheduleRequest overlays partial changes on the stored appointment.
// Nil fields keep the current value; ClearRoom drops the room link.
type RescheduleRequest struct {
	StartsAt    *time.Time
	DurationMin *int
	DoctorID    *uuid.UUID
	PatientID   *uuid.UUID
	RoomID      *uuid.UUID
	ClearRoom   bool
	Type        *AppointmentType
	Status      *AppointmentStatus
	Reason      *string
}

func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, changes RescheduleRequest) (*Appointment, error) {
	start := time.Now()
	updated, err := s.rescheduleAppointment(ctx, id, changes)
	s.metrics.ObserveLatency("reschedule", time.Since(start).Seconds())
	if err == nil {
		s.metrics.ObserveBooking("reschedule", "updated")
	} else {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveBooking("reschedule", "conflict")
			s.metrics.ObserveConflict(string(conflict.Resource))
		} else {
			s.metrics.ObserveBooking("reschedule", "error")
		}
	}
	return updated, err
}

func (s *Service) rescheduleAppointment(ctx context.Context, id uuid.UUID, changes RescheduleRequest) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCancelled {
		return nil, ErrAppointmentCancelled
	}

	effective := *current
	if changes.StartsAt != nil {
		effective.StartsAt = *changes.StartsAt
	}
	if changes.DurationMin != nil {
		effective.DurationMin = *changes.DurationMin
	}
	if changes.DoctorID != nil {
		effective.DoctorID = *changes.DoctorID
	}
	if changes.PatientID != nil {
		effective.PatientID = *changes.PatientID
	}
	if changes.ClearRoom {
		effective.RoomID = nil
	} else if changes.RoomID != nil {
		effective.RoomID = changes.RoomID
	}
	if changes.Type != nil {
		effective.Type = *changes.Type
	}
	if changes.Status != nil {
		if *changes.Status == StatusCancelled {
			return nil, fmt.Errorf("%w: use cancel for cancellation", ErrInvalidInterval)
		}
		effective.Status = *changes.Status
	}
	if changes.Reason != nil {
		effective.Reason = *changes.Reason
	}

	iv, err := NewInterval(effective.StartsAt, effective.DurationMin)
	if err != nil {
		return nil, err
	}

	slotMoved := !effective.StartsAt.Equal(current.StartsAt) ||
		effective.DurationMin != current.DurationMin ||
		effective.DoctorID != current.DoctorID

	var updated *Appointment
	err = s.locker.WithAgendaLock(ctx, effective.DoctorID, iv.Day(), func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			detector := NewConflictDetector(tx)
			if err := detector.Check(lockCtx, effective.DoctorID, effective.PatientID, effective.RoomID, iv, &id); err != nil {
				return err
			}

			if slotMoved {
				// The old window no longer applies; re-match softly.
				if current.WindowID != nil {
					if err := tx.AdjustWindowBooked(lockCtx, *current.WindowID, -1); err != nil {
						return err
					}
				}
				effective.WindowID = nil
				w, err := NewAvailabilityMatcher(tx).FindWindow(lockCtx, effective.DoctorID, iv)
				switch {
				case err == nil:
					effective.WindowID = &w.ID
					if err := tx.AdjustWindowBooked(lockCtx, w.ID, 1); err != nil {
						return err
					}
				case errors.Is(err, ErrNoWindow):
				default:
					return err
				}
			}

			updated, err = tx.UpdateAppointment(lockCtx, &effective)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if s.billing != nil && updated.DoctorID != current.DoctorID {
		if _, err := s.billing.Recascade(ctx, updated.ID, updated.DoctorID); err != nil &&
			!errors.Is(err, billing.ErrRecordNotFound) {
			log.Printf("billing recascade failed for appointment %s: %v", updated.ID, err)
		}
	}

	return updated, nil
}

type CancelResult struct {
	Appointment *Appointment
	// Cancelled is false when the appointment was already cancelled and
	// this call was a no-op.
	Cancelled bool
	// Candidate is the queue entry considered for the freed slot, set
	// whether or not the rebooking succeeded.
	Candidate *QueueEntry
	// Reassigned is the replacement appointment when the candidate was
	// booked into the freed interval.
	Reassigned *Appointment
	Warnings   []string
}

func (s *Service) CancelAndReassign(ctx context.Context, id uuid.UUID, reason string, autoAssign bool) (*CancelResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLatency("cancel", time.Since(start).Seconds())
	}()

	result := &CancelResult{}

	err := s.repo.InTx(ctx, func(tx Repository) error {
		appt, cancelledNow, err := tx.CancelAppointment(ctx, id, reason)
		if err != nil {
			return err
		}
		result.Appointment = appt
		result.Cancelled = cancelledNow
		if !cancelledNow {
			// Idempotent: a second cancel releases nothing.
			return nil
		}

		if appt.WindowID != nil {
			if err := tx.AdjustWindowBooked(ctx, *appt.WindowID, -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Cancelled {
		return result, nil
	}

	// The conditional cancel above fires at most once per appointment,
	// so the unit goes back exactly once.
	if result.Appointment.BlockID != nil {
		if err := s.prealloc.Release(ctx, *result.Appointment.BlockID); err != nil {
			log.Printf("preallocation release failed for appointment %s: %v", id, err)
		}
	}

	if s.billing != nil {
		if _, err := s.billing.UpdateStatus(ctx, id, billing.StatusCancelled); err != nil &&
			!errors.Is(err, billing.ErrRecordNotFound) {
			log.Printf("billing cancel failed for appointment %s: %v", id, err)
		}
	}

	if autoAssign {
		s.reassignFromQueue(ctx, result)
	}

	return result, nil
}

// reassignFromQueue tries to book the best waiting entry into the slot
// freed by the cancellation. A promoted candidate gets no exemption
// from conflict rules; on failure its entry stays pending.
func (s *Service) reassignFromQueue(ctx context.Context, result *CancelResult) {
	freed := result.Appointment

	entry, err := s.queue.PromoteNext(ctx, freed.SpecialtyID)
	if err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			s.metrics.ObservePromotion("empty")
			return
		}
		log.Printf("queue promotion lookup failed for specialty %s: %v", freed.SpecialtyID, err)
		return
	}
	result.Candidate = entry

	created, err := s.createAppointment(ctx, CreateRequest{
		PatientID:   entry.PatientID,
		DoctorID:    freed.DoctorID,
		SpecialtyID: freed.SpecialtyID,
		LocationID:  freed.LocationID,
		RoomID:      freed.RoomID,
		StartsAt:    freed.StartsAt,
		DurationMin: freed.DurationMin,
		Type:        freed.Type,
		Reason:      entry.Reason,
		CreatedBy:   "queue-promotion",
	})
	if err != nil {
		// The entry stays pending, untouched.
		s.metrics.ObservePromotion("skipped")
		result.Warnings = append(result.Warnings, warnPromotionSkipped)
		log.Printf("queue promotion booking failed for entry %s: %v", entry.ID, err)
		return
	}

	outcome := fmt.Sprintf("reassigned to appointment %s", created.Appointment.ID)
	resolved, err := s.queue.Resolve(ctx, entry.ID, QueueReassigned, outcome)
	if err != nil {
		log.Printf("queue entry %s resolution failed after booking: %v", entry.ID, err)
	} else {
		result.Candidate = resolved
	}

	s.metrics.ObservePromotion("reassigned")
	result.Reassigned = created.Appointment
	result.Warnings = append(result.Warnings, created.Warnings...)
}

// EnqueueWaiting appends a request to the specialty's waiting list.
func (s *Service) EnqueueWaiting(ctx context.Context, patientID, specialtyID uuid.UUID, priority Priority, reason string) (*QueueEntry, error) {
	return s.queue.Enqueue(ctx, patientID, specialtyID, priority, reason)
}

// PromoteNext peeks at the next candidate without mutating it.
func (s *Service) PromoteNext(ctx context.Context, specialtyID uuid.UUID) (*QueueEntry, error) {
	return s.queue.PromoteNext(ctx, specialtyID)
}

// RecalculateAvailabilityCounts rescans non-cancelled appointments for
// the window and corrects its booked count.
func (s *Service) RecalculateAvailabilityCounts(ctx context.Context, windowID uuid.UUID) (int, error) {
	return s.repo.RecountWindow(ctx, windowID)
}

// ConflictFinding is one row of the pre-submit conflict preview.
type ConflictFinding struct {
	Resource   ResourceKind
	ResourceID uuid.UUID
	Conflict   bool
}

// PreviewConflicts runs the same checks as a booking, read-only.
func (s *Service) PreviewConflicts(ctx context.Context, doctorID, patientID uuid.UUID, roomID *uuid.UUID, startsAt time.Time, durationMin int, excludeID *uuid.UUID) ([]ConflictFinding, error) {
	iv, err := NewInterval(startsAt, durationMin)
	if err != nil {
		return nil, err
	}

	detector := NewConflictDetector(s.repo)

	findings := make([]ConflictFinding, 0, 3)
	doctorConflict, err := detector.HasConflict(ctx, ResourceDoctor, doctorID, iv, excludeID)
	if err != nil {
		return nil, err
	}
	findings = append(findings, ConflictFinding{ResourceDoctor, doctorID, doctorConflict})

	patientConflict, err := detector.HasConflict(ctx, ResourcePatient, patientID, iv, excludeID)
	if err != nil {
		return nil, err
	}
	findings = append(findings, ConflictFinding{ResourcePatient, patientID, patientConflict})

	if roomID != nil {
		roomConflict, err := detector.HasConflict(ctx, ResourceRoom, *roomID, iv, excludeID)
		if err != nil {
			return nil, err
		}
		findings = append(findings, ConflictFinding{ResourceRoom, *roomID, roomConflict})
	}

	return findings, nil
}

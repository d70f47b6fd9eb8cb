package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

// NewPgRepositoryWithQuerier exists for tests that substitute the pool.
func NewPgRepositoryWithQuerier(q querier) *PgRepository {
	return &PgRepository{db: q}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	starter, ok := r.db.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		// Already bound to a transaction-like querier.
		return fn(r)
	}

	tx, err := starter.Begin(ctx)
	if err != nil {
		return infraErr("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return infraErr("commit tx", err)
	}
	return nil
}

// Helpers

const appointmentColumns = `id, patient_id, doctor_id, specialty_id, location_id, room_id,
		window_id, block_id, starts_at, duration_min, type, status, reason,
		cancel_reason, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SpecialtyID,
		&a.LocationID,
		&a.RoomID,
		&a.WindowID,
		&a.BlockID,
		&a.StartsAt,
		&a.DurationMin,
		&a.Type,
		&a.Status,
		&a.Reason,
		&a.CancelReason,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, infraErr("scan appointment", err)
	}

	return &a, nil
}

const windowColumns = `id, doctor_id, specialty_id, location_id, day, starts_at, ends_at,
		capacity, booked_count, created_at, updated_at`

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.SpecialtyID,
		&w.LocationID,
		&w.Day,
		&w.StartsAt,
		&w.EndsAt,
		&w.Capacity,
		&w.BookedCount,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, infraErr("scan window", err)
	}

	return &w, nil
}

const blockColumns = `id, doctor_id, target_day, reserved_on, slot_count, assigned_count,
		created_at, updated_at`

func scanBlock(row pgx.Row) (*PreallocationBlock, error) {
	var b PreallocationBlock

	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&b.TargetDay,
		&b.ReservedOn,
		&b.SlotCount,
		&b.AssignedCount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, infraErr("scan block", err)
	}

	return &b, nil
}

const entryColumns = `id, patient_id, specialty_id, priority, reason, status, outcome,
		created_at, resolved_at`

func scanEntry(row pgx.Row) (*QueueEntry, error) {
	var e QueueEntry

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.SpecialtyID,
		&e.Priority,
		&e.Reason,
		&e.Status,
		&e.Outcome,
		&e.CreatedAt,
		&e.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, infraErr("scan waiting entry", err)
	}

	return &e, nil
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, specialty_id, location_id,
			room_id, window_id, block_id, starts_at, duration_min, type, status,
			reason, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.DoctorID, a.SpecialtyID, a.LocationID,
		a.RoomID, a.WindowID, a.BlockID, a.StartsAt, a.DurationMin, a.Type, a.Status,
		a.Reason, a.CreatedBy)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    doctor_id = $3,
		    room_id = $4,
		    window_id = $5,
		    starts_at = $6,
		    duration_min = $7,
		    type = $8,
		    status = $9,
		    reason = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, a.RoomID, a.WindowID,
		a.StartsAt, a.DurationMin, a.Type, a.Status, a.Reason)

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, bool, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns+`
	`, id, reason)

	a, err := scanAppointment(row)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, false, err
	}

	// Either absent or already cancelled; a second cancel is a no-op.
	existing, getErr := r.GetAppointmentByID(ctx, id)
	if getErr != nil {
		return nil, false, getErr
	}
	return existing, false, nil
}

func resourceColumn(res ResourceKind) (string, error) {
	switch res {
	case ResourceDoctor:
		return "doctor_id", nil
	case ResourcePatient:
		return "patient_id", nil
	case ResourceRoom:
		return "room_id", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", res)
	}
}

func (r *PgRepository) CountOverlapping(ctx context.Context, res ResourceKind, resourceID uuid.UUID, iv Interval, excludeID *uuid.UUID) (int, error) {
	col, err := resourceColumn(res)
	if err != nil {
		return 0, err
	}

	// Half-open overlap: starts_at < candidate end AND candidate start <
	// appointment end. Touching endpoints never conflict.
	var count int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE `+col+` = $1
		  AND status <> 'cancelled'
		  AND starts_at < $2
		  AND starts_at + make_interval(mins => duration_min) > $3
		  AND ($4::uuid IS NULL OR id <> $4)
	`, resourceID, iv.End, iv.Start, excludeID).Scan(&count)
	if err != nil {
		return 0, infraErr("count overlapping appointments", err)
	}

	return count, nil
}

// Availability windows

func (r *PgRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id)
	return scanWindow(row)
}

func (r *PgRepository) FindContainingWindow(ctx context.Context, doctorID uuid.UUID, iv Interval) (*AvailabilityWindow, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE doctor_id = $1
		  AND day = $2
		  AND starts_at <= $3
		  AND ends_at >= $4
		  AND booked_count < capacity
		ORDER BY starts_at ASC, id ASC
		LIMIT 1
	`, doctorID, iv.Day(), iv.Start, iv.End)

	w, err := scanWindow(row)
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return nil, ErrNoWindow
		}
		return nil, err
	}
	return w, nil
}

func (r *PgRepository) AdjustWindowBooked(ctx context.Context, windowID uuid.UUID, delta int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE availability_windows
		SET booked_count = GREATEST(booked_count + $2, 0),
		    updated_at = now()
		WHERE id = $1
	`, windowID, delta)
	if err != nil {
		return infraErr("adjust window booked count", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *PgRepository) RecountWindow(ctx context.Context, windowID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE availability_windows
		SET booked_count = (
			SELECT COUNT(*)
			FROM appointments
			WHERE window_id = $1
			  AND status <> 'cancelled'
		),
		updated_at = now()
		WHERE id = $1
		RETURNING booked_count
	`, windowID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWindowNotFound
		}
		return 0, infraErr("recount window", err)
	}
	return count, nil
}

// Preallocation blocks

func (r *PgRepository) FindConsumableBlock(ctx context.Context, doctorID uuid.UUID, targetDay, asOf time.Time) (*PreallocationBlock, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM preallocation_blocks
		WHERE doctor_id = $1
		  AND target_day = $2
		  AND reserved_on <= $3
		  AND assigned_count < slot_count
		ORDER BY reserved_on ASC, id ASC
		LIMIT 1
	`, doctorID, targetDay, asOf)
	return scanBlock(row)
}

func (r *PgRepository) ConsumeBlock(ctx context.Context, blockID uuid.UUID, expectedAssigned int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE preallocation_blocks
		SET assigned_count = assigned_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND assigned_count = $2
		  AND assigned_count < slot_count
	`, blockID, expectedAssigned)
	if err != nil {
		return false, infraErr("consume preallocation block", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ReleaseBlock(ctx context.Context, blockID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE preallocation_blocks
		SET assigned_count = assigned_count - 1,
		    updated_at = now()
		WHERE id = $1
		  AND assigned_count > 0
	`, blockID)
	if err != nil {
		return infraErr("release preallocation block", err)
	}
	return nil
}

func (r *PgRepository) LinkAppointmentBlock(ctx context.Context, appointmentID, blockID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET block_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, appointmentID, blockID)
	if err != nil {
		return infraErr("link appointment block", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Waiting queue

func (r *PgRepository) EnqueueEntry(ctx context.Context, e *QueueEntry) (*QueueEntry, error) {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO waiting_entries (id, patient_id, specialty_id, priority, reason,
			status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', now())
		RETURNING `+entryColumns+`
	`, id, e.PatientID, e.SpecialtyID, e.Priority, e.Reason)

	return scanEntry(row)
}

func (r *PgRepository) NextPendingEntry(ctx context.Context, specialtyID uuid.UUID) (*QueueEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_entries
		WHERE specialty_id = $1
		  AND status = 'pending'
		ORDER BY CASE priority
			WHEN 'urgente' THEN 3
			WHEN 'alta' THEN 2
			WHEN 'normal' THEN 1
			ELSE 0
		END DESC, created_at ASC, id ASC
		LIMIT 1
	`, specialtyID)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrQueueEmpty
		}
		return nil, err
	}
	return e, nil
}

func (r *PgRepository) ResolveEntry(ctx context.Context, entryID uuid.UUID, status QueueStatus, outcome string) (*QueueEntry, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE waiting_entries
		SET status = $2,
		    outcome = $3,
		    resolved_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+entryColumns+`
	`, entryID, status, outcome)

	e, err := scanEntry(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrEntryNotFound) {
		return nil, err
	}

	// Distinguish an absent entry from one already in a terminal state.
	var exists bool
	checkErr := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM waiting_entries WHERE id = $1)
	`, entryID).Scan(&exists)
	if checkErr != nil {
		return nil, infraErr("check waiting entry", checkErr)
	}
	if exists {
		return nil, ErrEntryClosed
	}
	return nil, ErrEntryNotFound
}

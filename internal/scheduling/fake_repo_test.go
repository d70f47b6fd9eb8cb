package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository used by the orchestrator tests.
// It mirrors the SQL semantics of PgRepository: conditional cancel,
// conditional block consume, queue ordering, window matching.
type fakeRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	windows      map[uuid.UUID]*AvailabilityWindow
	blocks       map[uuid.UUID]*PreallocationBlock
	entries      map[uuid.UUID]*QueueEntry
	clock        int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		windows:      make(map[uuid.UUID]*AvailabilityWindow),
		blocks:       make(map[uuid.UUID]*PreallocationBlock),
		entries:      make(map[uuid.UUID]*QueueEntry),
	}
}

func (f *fakeRepo) tick() time.Time {
	f.clock++
	return time.Unix(f.clock, 0).UTC()
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = f.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appointments[a.ID]; !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	cp.UpdatedAt = f.tick()
	f.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, false, ErrAppointmentNotFound
	}
	if a.Status == StatusCancelled {
		cp := *a
		return &cp, false, nil
	}
	a.Status = StatusCancelled
	a.CancelReason = &reason
	a.UpdatedAt = f.tick()
	cp := *a
	return &cp, true, nil
}

func (f *fakeRepo) CountOverlapping(ctx context.Context, res ResourceKind, resourceID uuid.UUID, iv Interval, excludeID *uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.appointments {
		if a.Status == StatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		var holder uuid.UUID
		switch res {
		case ResourceDoctor:
			holder = a.DoctorID
		case ResourcePatient:
			holder = a.PatientID
		case ResourceRoom:
			if a.RoomID == nil {
				continue
			}
			holder = *a.RoomID
		}
		if holder != resourceID {
			continue
		}
		if a.Interval().Overlaps(iv) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeRepo) FindContainingWindow(ctx context.Context, doctorID uuid.UUID, iv Interval) (*AvailabilityWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var eligible []*AvailabilityWindow
	for _, w := range f.windows {
		if w.DoctorID != doctorID {
			continue
		}
		if !w.Day.Equal(iv.Day()) {
			continue
		}
		if !w.Contains(iv) || !w.HasCapacity() {
			continue
		}
		eligible = append(eligible, w)
	}
	if len(eligible) == 0 {
		return nil, ErrNoWindow
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].StartsAt.Equal(eligible[j].StartsAt) {
			return eligible[i].StartsAt.Before(eligible[j].StartsAt)
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})
	cp := *eligible[0]
	return &cp, nil
}

func (f *fakeRepo) AdjustWindowBooked(ctx context.Context, windowID uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[windowID]
	if !ok {
		return ErrWindowNotFound
	}
	w.BookedCount += delta
	if w.BookedCount < 0 {
		w.BookedCount = 0
	}
	return nil
}

func (f *fakeRepo) RecountWindow(ctx context.Context, windowID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[windowID]
	if !ok {
		return 0, ErrWindowNotFound
	}
	count := 0
	for _, a := range f.appointments {
		if a.Status == StatusCancelled || a.WindowID == nil {
			continue
		}
		if *a.WindowID == windowID {
			count++
		}
	}
	w.BookedCount = count
	return count, nil
}

func (f *fakeRepo) FindConsumableBlock(ctx context.Context, doctorID uuid.UUID, targetDay, asOf time.Time) (*PreallocationBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var eligible []*PreallocationBlock
	for _, b := range f.blocks {
		if b.DoctorID != doctorID || !b.TargetDay.Equal(targetDay) {
			continue
		}
		if b.ReservedOn.After(asOf) || b.AssignedCount >= b.SlotCount {
			continue
		}
		eligible = append(eligible, b)
	}
	if len(eligible) == 0 {
		return nil, ErrBlockNotFound
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].ReservedOn.Equal(eligible[j].ReservedOn) {
			return eligible[i].ReservedOn.Before(eligible[j].ReservedOn)
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})
	cp := *eligible[0]
	return &cp, nil
}

func (f *fakeRepo) ConsumeBlock(ctx context.Context, blockID uuid.UUID, expectedAssigned int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[blockID]
	if !ok {
		return false, nil
	}
	if b.AssignedCount != expectedAssigned || b.AssignedCount >= b.SlotCount {
		return false, nil
	}
	b.AssignedCount++
	return true, nil
}

func (f *fakeRepo) ReleaseBlock(ctx context.Context, blockID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[blockID]
	if !ok {
		return nil
	}
	if b.AssignedCount > 0 {
		b.AssignedCount--
	}
	return nil
}

func (f *fakeRepo) LinkAppointmentBlock(ctx context.Context, appointmentID, blockID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[appointmentID]
	if !ok {
		return ErrAppointmentNotFound
	}
	id := blockID
	a.BlockID = &id
	return nil
}

func (f *fakeRepo) EnqueueEntry(ctx context.Context, e *QueueEntry) (*QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Status = QueuePending
	cp.CreatedAt = f.tick()
	f.entries[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) NextPendingEntry(ctx context.Context, specialtyID uuid.UUID) (*QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []*QueueEntry
	for _, e := range f.entries {
		if e.SpecialtyID == specialtyID && e.Status == QueuePending {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil, ErrQueueEmpty
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority.Rank() != pending[j].Priority.Rank() {
			return pending[i].Priority.Rank() > pending[j].Priority.Rank()
		}
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID.String() < pending[j].ID.String()
	})
	cp := *pending[0]
	return &cp, nil
}

func (f *fakeRepo) ResolveEntry(ctx context.Context, entryID uuid.UUID, status QueueStatus, outcome string) (*QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	if e.Status != QueuePending {
		return nil, ErrEntryClosed
	}
	e.Status = status
	e.Outcome = &outcome
	now := f.tick()
	e.ResolvedAt = &now
	cp := *e
	return &cp, nil
}

// fakeLocker runs the critical section inline.
type fakeLocker struct{}

func (fakeLocker) WithAgendaLock(ctx context.Context, doctorID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/billing"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/redisclient"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/scheduling"
)

// SchedulingService is what the handlers need from the orchestrator.
type SchedulingService interface {
	CreateAppointment(ctx context.Context, req scheduling.CreateRequest) (*scheduling.CreateResult, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, changes scheduling.RescheduleRequest) (*scheduling.Appointment, error)
	CancelAndReassign(ctx context.Context, id uuid.UUID, reason string, autoAssign bool) (*scheduling.CancelResult, error)
	EnqueueWaiting(ctx context.Context, patientID, specialtyID uuid.UUID, priority scheduling.Priority, reason string) (*scheduling.QueueEntry, error)
	PromoteNext(ctx context.Context, specialtyID uuid.UUID) (*scheduling.QueueEntry, error)
	RecalculateAvailabilityCounts(ctx context.Context, windowID uuid.UUID) (int, error)
	PreviewConflicts(ctx context.Context, doctorID, patientID uuid.UUID, roomID *uuid.UUID, startsAt time.Time, durationMin int, excludeID *uuid.UUID) ([]scheduling.ConflictFinding, error)
}

func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(w http.ResponseWriter, raw *string, field string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, ok := parseUUID(w, *raw, field)
	if !ok {
		return nil, false
	}
	return &id, true
}

func createAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		doctorID, ok := parseUUID(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		specialtyID, ok := parseUUID(w, req.SpecialtyID, "specialty_id")
		if !ok {
			return
		}
		locationID, ok := parseUUID(w, req.LocationID, "location_id")
		if !ok {
			return
		}
		roomID, ok := parseOptionalUUID(w, req.RoomID, "room_id")
		if !ok {
			return
		}
		windowID, ok := parseOptionalUUID(w, req.WindowID, "window_id")
		if !ok {
			return
		}
		serviceID, ok := parseOptionalUUID(w, req.ServiceID, "service_id")
		if !ok {
			return
		}

		result, err := svc.CreateAppointment(r.Context(), scheduling.CreateRequest{
			PatientID:     patientID,
			DoctorID:      doctorID,
			SpecialtyID:   specialtyID,
			LocationID:    locationID,
			RoomID:        roomID,
			WindowID:      windowID,
			ServiceID:     serviceID,
			SpecialtyName: req.SpecialtyName,
			StartsAt:      req.StartsAt,
			DurationMin:   req.DurationMin,
			Type:          scheduling.AppointmentType(req.Type),
			Confirmed:     req.Confirmed,
			Reason:        req.Reason,
			CreatedBy:     req.CreatedBy,
			Manual:        req.Manual,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCreateResponse(result))
	}
}

func rescheduleAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, ok := parseOptionalUUID(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		patientID, ok := parseOptionalUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		roomID, ok := parseOptionalUUID(w, req.RoomID, "room_id")
		if !ok {
			return
		}

		changes := scheduling.RescheduleRequest{
			StartsAt:    req.StartsAt,
			DurationMin: req.DurationMin,
			DoctorID:    doctorID,
			PatientID:   patientID,
			RoomID:      roomID,
			ClearRoom:   req.ClearRoom,
			Reason:      req.Reason,
		}
		if req.Type != nil {
			t := scheduling.AppointmentType(*req.Type)
			changes.Type = &t
		}
		if req.Status != nil {
			st := scheduling.AppointmentStatus(*req.Status)
			changes.Status = &st
		}

		updated, err := svc.RescheduleAppointment(r.Context(), id, changes)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func cancelAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result, err := svc.CancelAndReassign(r.Context(), id, req.Reason, req.AutoAssign)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := CancelAppointmentResponse{
			Appointment: toAppointmentResponse(result.Appointment),
			Cancelled:   result.Cancelled,
			Warnings:    result.Warnings,
		}
		if result.Candidate != nil {
			c := toQueueEntryResponse(result.Candidate)
			resp.Candidate = &c
		}
		if result.Reassigned != nil {
			re := toAppointmentResponse(result.Reassigned)
			resp.Reassigned = &re
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func enqueueWaitingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		specialtyID, ok := parseUUID(w, req.SpecialtyID, "specialty_id")
		if !ok {
			return
		}

		entry, err := svc.EnqueueWaiting(r.Context(), patientID, specialtyID, scheduling.Priority(req.Priority), req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toQueueEntryResponse(entry))
	}
}

func promoteNextHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialtyID, ok := parseUUID(w, r.URL.Query().Get("specialty_id"), "specialty_id")
		if !ok {
			return
		}

		entry, err := svc.PromoteNext(r.Context(), specialtyID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func recountWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windowID, ok := parseUUID(w, chi.URLParam(r, "id"), "window_id")
		if !ok {
			return
		}

		count, err := svc.RecalculateAvailabilityCounts(r.Context(), windowID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, RecountResponse{WindowID: windowID, BookedCount: count})
	}
}

func previewConflictsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewConflictsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, ok := parseUUID(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		roomID, ok := parseOptionalUUID(w, req.RoomID, "room_id")
		if !ok {
			return
		}
		excludeID, ok := parseOptionalUUID(w, req.ExcludeAppointmentID, "exclude_appointment_id")
		if !ok {
			return
		}

		findings, err := svc.PreviewConflicts(r.Context(), doctorID, patientID, roomID, req.StartsAt, req.DurationMin, excludeID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := PreviewConflictsResponse{Findings: make([]ConflictFindingResponse, 0, len(findings))}
		for _, f := range findings {
			resp.Findings = append(resp.Findings, ConflictFindingResponse{
				Resource:   string(f.Resource),
				ResourceID: f.ResourceID,
				Conflict:   f.Conflict,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		SpecialtyID: a.SpecialtyID,
		LocationID:  a.LocationID,
		RoomID:      a.RoomID,
		WindowID:    a.WindowID,
		BlockID:     a.BlockID,
		StartsAt:    a.StartsAt,
		DurationMin: a.DurationMin,
		Type:        string(a.Type),
		Status:      string(a.Status),
		Reason:      a.Reason,
	}
}

func toQueueEntryResponse(e *scheduling.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:          e.ID,
		PatientID:   e.PatientID,
		SpecialtyID: e.SpecialtyID,
		Priority:    string(e.Priority),
		Reason:      e.Reason,
		Status:      string(e.Status),
		Outcome:     e.Outcome,
		CreatedAt:   e.CreatedAt,
		ResolvedAt:  e.ResolvedAt,
	}
}

func toCreateResponse(result *scheduling.CreateResult) CreateAppointmentResponse {
	resp := CreateAppointmentResponse{
		Appointment: toAppointmentResponse(result.Appointment),
		Warnings:    result.Warnings,
	}
	if result.Billing != nil {
		resp.Billing = &BillingSummary{
			ServiceID:     result.Billing.ServiceID,
			BasePrice:     result.Billing.BasePrice,
			OverridePrice: result.Billing.OverridePrice,
			FinalPrice:    result.Billing.FinalPrice,
			Currency:      result.Billing.Currency,
			Status:        string(result.Billing.Status),
		}
	}
	return resp
}

func handleServiceError(w http.ResponseWriter, err error) {
	var conflict *scheduling.ConflictError
	var infra *scheduling.InfraError

	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:    "schedule_conflict",
			Details:  conflict.Error(),
			Resource: string(conflict.Resource),
		})
	case errors.Is(err, scheduling.ErrInvalidInterval):
		writeError(w, http.StatusUnprocessableEntity, "invalid_interval", err.Error())
	case errors.Is(err, scheduling.ErrInvalidPriority):
		writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound),
		errors.Is(err, scheduling.ErrWindowNotFound),
		errors.Is(err, scheduling.ErrBlockNotFound),
		errors.Is(err, scheduling.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, scheduling.ErrQueueEmpty):
		writeError(w, http.StatusNotFound, "queue_empty", err.Error())
	case errors.Is(err, scheduling.ErrEntryClosed),
		errors.Is(err, scheduling.ErrAppointmentCancelled):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "agenda_busy", "this doctor's agenda is being booked, please retry shortly")
	case errors.Is(err, billing.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.As(err, &infra):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "the scheduling store is unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

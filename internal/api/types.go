package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	SpecialtyID   string    `json:"specialty_id"`
	LocationID    string    `json:"location_id"`
	RoomID        *string   `json:"room_id,omitempty"`
	WindowID      *string   `json:"window_id,omitempty"`
	ServiceID     *string   `json:"service_id,omitempty"`
	SpecialtyName string    `json:"specialty_name,omitempty"`
	StartsAt      time.Time `json:"starts_at"`
	DurationMin   int       `json:"duration_min"`
	Type          string    `json:"type"`
	Confirmed     bool      `json:"confirmed"`
	Reason        string    `json:"reason"`
	CreatedBy     string    `json:"created_by"`
	Manual        bool      `json:"manual"`
}

type RescheduleAppointmentRequest struct {
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	DurationMin *int       `json:"duration_min,omitempty"`
	DoctorID    *string    `json:"doctor_id,omitempty"`
	PatientID   *string    `json:"patient_id,omitempty"`
	RoomID      *string    `json:"room_id,omitempty"`
	ClearRoom   bool       `json:"clear_room,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Reason      *string    `json:"reason,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason     string `json:"reason"`
	AutoAssign bool   `json:"auto_assign"`
}

type EnqueueRequest struct {
	PatientID   string `json:"patient_id"`
	SpecialtyID string `json:"specialty_id"`
	Priority    string `json:"priority"`
	Reason      string `json:"reason"`
}

type PreviewConflictsRequest struct {
	DoctorID             string    `json:"doctor_id"`
	PatientID            string    `json:"patient_id"`
	RoomID               *string   `json:"room_id,omitempty"`
	StartsAt             time.Time `json:"starts_at"`
	DurationMin          int       `json:"duration_min"`
	ExcludeAppointmentID *string   `json:"exclude_appointment_id,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	SpecialtyID uuid.UUID  `json:"specialty_id"`
	LocationID  uuid.UUID  `json:"location_id"`
	RoomID      *uuid.UUID `json:"room_id,omitempty"`
	WindowID    *uuid.UUID `json:"window_id,omitempty"`
	BlockID     *uuid.UUID `json:"block_id,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	DurationMin int        `json:"duration_min"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
}

type BillingSummary struct {
	ServiceID     uuid.UUID `json:"service_id"`
	BasePrice     int64     `json:"base_price"`
	OverridePrice *int64    `json:"override_price,omitempty"`
	FinalPrice    int64     `json:"final_price"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
}

type CreateAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Billing     *BillingSummary     `json:"billing,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type QueueEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	SpecialtyID uuid.UUID  `json:"specialty_id"`
	Priority    string     `json:"priority"`
	Reason      string     `json:"reason,omitempty"`
	Status      string     `json:"status"`
	Outcome     *string    `json:"outcome,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type CancelAppointmentResponse struct {
	Appointment AppointmentResponse  `json:"appointment"`
	Cancelled   bool                 `json:"cancelled"`
	Candidate   *QueueEntryResponse  `json:"candidate,omitempty"`
	Reassigned  *AppointmentResponse `json:"reassigned,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
}

type ConflictFindingResponse struct {
	Resource   string    `json:"resource"`
	ResourceID uuid.UUID `json:"resource_id"`
	Conflict   bool      `json:"conflict"`
}

type PreviewConflictsResponse struct {
	Findings []ConflictFindingResponse `json:"findings"`
}

type RecountResponse struct {
	WindowID    uuid.UUID `json:"window_id"`
	BookedCount int       `json:"booked_count"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Resource string `json:"resource,omitempty"`
}

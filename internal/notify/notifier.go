package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AppointmentNotice is the summary dispatched when a manual appointment
// is created for a patient with a known contact.
type AppointmentNotice struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	SpecialtyID   uuid.UUID `json:"specialty_id"`
	LocationID    uuid.UUID `json:"location_id"`
	StartsAt      time.Time `json:"starts_at"`
	DurationMin   int       `json:"duration_min"`
	Reason        string    `json:"reason,omitempty"`
}

// Notifier is fire-and-forget: the scheduler never awaits the result
// and never fails on an error from here.
type Notifier interface {
	Send(ctx context.Context, n AppointmentNotice) error
}

// WebhookNotifier posts the notice to a configured HTTP endpoint, which
// owns the actual SMS/email delivery.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, n AppointmentNotice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, AppointmentNotice) error {
	return nil
}

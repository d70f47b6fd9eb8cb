package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierPostsNotice(t *testing.T) {
	notice := AppointmentNotice{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		SpecialtyID:   uuid.New(),
		LocationID:    uuid.New(),
		StartsAt:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationMin:   30,
		Reason:        "consulta",
	}

	var received AppointmentNotice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), notice)
	require.NoError(t, err)
	assert.Equal(t, notice.AppointmentID, received.AppointmentID)
	assert.True(t, notice.StartsAt.Equal(received.StartsAt))
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), AppointmentNotice{})
	assert.Error(t, err)
}

func TestNoopNotifier(t *testing.T) {
	assert.NoError(t, NoopNotifier{}.Send(context.Background(), AppointmentNotice{}))
}

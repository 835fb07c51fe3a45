package list

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-session-service/api"
	"clinic-session-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	doctors []api.DoctorListing
	err     error
}

func (s stubLister) ListDoctors(context.Context) ([]api.DoctorListing, error) {
	return s.doctors, s.err
}

func list(lister DoctorLister) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), lister).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors", nil))

	return rec
}

func TestListDoctorsWithFreeSlots(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	lister := stubLister{doctors: []api.DoctorListing{
		{
			Doctor: models.Doctor{ID: "doc-1", Name: "Dr. Perera", Specialty: "Pediatrics", Rating: 4.8},
			TimeSlots: []models.TimeSlot{
				{ID: "s1", DoctorID: "doc-1", Date: day, Time: "09:00", Room: "Room 1"},
			},
		},
		{
			Doctor:    models.Doctor{ID: "doc-2", Name: "Dr. Silva"},
			TimeSlots: []models.TimeSlot{},
		},
	}}

	rec := list(lister)

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Success bool `json:"success"`
		Doctors []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			TimeSlots []struct {
				Time string `json:"time"`
			} `json:"timeSlots"`
		} `json:"doctors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.True(t, got.Success)
	require.Len(t, got.Doctors, 2)
	assert.Equal(t, "Dr. Perera", got.Doctors[0].Name)
	require.Len(t, got.Doctors[0].TimeSlots, 1)
	assert.Equal(t, "09:00", got.Doctors[0].TimeSlots[0].Time)
	assert.NotNil(t, got.Doctors[1].TimeSlots)
	assert.Empty(t, got.Doctors[1].TimeSlots)
}

func TestListDoctorsStorageFailure(t *testing.T) {
	rec := list(stubLister{err: errors.New("connection refused")})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

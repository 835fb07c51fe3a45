package end

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-session-service/internal/inference"
	"clinic-session-service/internal/models"
	"clinic-session-service/internal/session"
	"clinic-session-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnder struct {
	out          session.Outcome
	err          error
	id           string
	prescription *string
}

func (s *stubEnder) End(_ context.Context, appointmentID string, prescription *string) (session.Outcome, error) {
	s.id = appointmentID
	s.prescription = prescription
	return s.out, s.err
}

func serve(t *testing.T, stub *stubEnder, body string) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.Post("/sessions/{appointmentId}/end", New(slog.New(slog.NewTextHandler(io.Discard, nil)), stub))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/appt-1/end", strings.NewReader(body)))

	return rec
}

func TestEndSaved(t *testing.T) {
	stub := &stubEnder{out: session.Outcome{
		Record: &models.SessionRecord{
			ID:            "rec-1",
			AppointmentID: "appt-1",
			Duration:      95,
			Prediction:    "Unknown",
		},
		Prediction: inference.Unknown(),
		Saved:      true,
	}}

	rec := serve(t, stub, `{"prescription":"rest"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "appt-1", stub.id)
	require.NotNil(t, stub.prescription)
	assert.Equal(t, "rest", *stub.prescription)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["saved"])
	require.Contains(t, got, "sessionRecord")
	assert.Equal(t, "rec-1", got["sessionRecord"].(map[string]any)["id"])
}

func TestEndWithoutBody(t *testing.T) {
	stub := &stubEnder{out: session.Outcome{Saved: true, Record: &models.SessionRecord{ID: "rec-1"}}}

	rec := serve(t, stub, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, stub.prescription)
}

func TestEndNotSavedIsServiceUnavailable(t *testing.T) {
	stub := &stubEnder{
		out: session.Outcome{Prediction: inference.Unknown(), Saved: false},
		err: fmt.Errorf("session.Controller.End: %w: db down", response.ErrNotSaved),
	}

	rec := serve(t, stub, "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, false, got["saved"])
	assert.Equal(t, "NOT_SAVED", got["error"].(map[string]any)["code"])
	assert.Equal(t, "Unknown", got["prediction"].(map[string]any)["prediction"])
	assert.NotContains(t, got, "sessionRecord")
}

func TestEndWrongPhase(t *testing.T) {
	stub := &stubEnder{err: fmt.Errorf("end: %w", response.ErrWrongPhase)}

	rec := serve(t, stub, "")

	require.Equal(t, http.StatusConflict, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotContains(t, got, "saved")
}

package inference

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func features() models.SessionAverages {
	return models.SessionAverages{
		HeartRate: 72, BodyTemp: 36.8, SpeechNoiseDB: 40, ECGVariability: 48,
		Age: 12, Gender: "Female", Province: "Western",
	}
}

func TestPredict_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/predict", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 72.0, body["heart_rate"])
		assert.Equal(t, "Western", body["province"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction":"Low","probability":0.12,"confidence":76.0,"input_used":{"heart_rate":72}}`))
	}))
	defer srv.Close()

	c := New(testLogger(), srv.URL, time.Second)

	p, err := c.Predict(context.Background(), features())

	require.NoError(t, err)
	assert.Equal(t, "Low", p.Prediction)
	assert.Equal(t, 0.12, p.Probability)
	assert.Equal(t, 76.0, p.Confidence)
	assert.Equal(t, 72.0, p.InputUsed.HeartRate)
}

func TestPredict_ServerErrorIsSoftFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(testLogger(), srv.URL, time.Second).Predict(context.Background(), features())

	assert.ErrorIs(t, err, response.ErrInferenceUnavailable)
	assert.Equal(t, Unknown(), p)
	assert.Equal(t, 1, calls)
}

func TestPredict_TimeoutIsSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p, err := New(testLogger(), srv.URL, 20*time.Millisecond).Predict(context.Background(), features())

	assert.ErrorIs(t, err, response.ErrInferenceUnavailable)
	assert.Equal(t, UnknownLabel, p.Prediction)
	assert.Zero(t, p.Probability)
	assert.Zero(t, p.Confidence)
}

func TestPredict_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(testLogger(), url, time.Second).Predict(context.Background(), features())

	assert.ErrorIs(t, err, response.ErrInferenceUnavailable)
}

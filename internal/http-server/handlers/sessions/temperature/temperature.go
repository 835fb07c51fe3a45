package temperature

import (
	"log/slog"
	"net/http"

	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type TemperatureRecorder interface {
	RecordTemperature(appointmentID string) (float64, error)
}

type Response struct {
	response.Response
	RecordedTemp float64 `json:"recordedTemp"`
}

// New freezes the current live reading as the session's body temperature.
func New(log *slog.Logger, recorder TemperatureRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.temperature.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		temp, err := recorder.RecordTemperature(appointmentID)
		if err != nil {
			log.Warn("Failed to record temperature", slog.String("appointment_id", appointmentID), sl.Err(err))
			response.RenderError(w, r, err, "failed to record temperature")
			return
		}

		log.Info("Temperature recorded", slog.String("appointment_id", appointmentID), slog.Float64("temp", temp))

		render.JSON(w, r, Response{
			Response:     response.OK(),
			RecordedTemp: temp,
		})
	}
}

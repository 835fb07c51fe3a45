package get

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type AppointmentGetter interface {
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, getter AppointmentGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		appt, err := getter.GetAppointment(r.Context(), id)
		if err != nil {
			log.Error("Failed to get appointment", slog.String("id", id), sl.Err(err))
			response.RenderError(w, r, err, "failed to get appointment")
			return
		}

		render.JSON(w, r, Response{
			Response:    response.OK(),
			Appointment: appt,
		})
	}
}

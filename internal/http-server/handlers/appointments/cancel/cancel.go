package cancel

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

type AppointmentCanceler interface {
	CancelAppointment(ctx context.Context, id string) (*models.Appointment, error)
}

type Response struct {
	response.Response
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, svc AppointmentCanceler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.cancel.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		appt, err := svc.CancelAppointment(r.Context(), id)
		if err != nil {
			log.Error("Failed to cancel appointment", slog.String("id", id), sl.Err(err))
			response.RenderError(w, r, err, "failed to cancel appointment")
			return
		}

		log.Info("Appointment cancelled", slog.String("id", id))

		render.JSON(w, r, Response{
			Response:    response.OK(),
			Appointment: appt,
		})
	}
}

package create

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AppointmentReserver interface {
	ReserveAppointment(ctx context.Context, req *api.ReservationRequest) (*api.ReservationResponse, error)
}

type Request struct {
	api.ReservationRequest
}

type Response struct {
	response.Response
	api.ReservationResponse
}

func New(log *slog.Logger, reserver AppointmentReserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		log.Info("Request body decoded",
			slog.String("doctor_id", req.DoctorID),
			slog.String("date", req.Date),
		)

		res, err := reserver.ReserveAppointment(r.Context(), &req.ReservationRequest)
		if err != nil {
			log.Error("Failed to reserve appointment", sl.Err(err))
			response.RenderError(w, r, err, "failed to book appointment")
			return
		}

		log.Info("Appointment reserved",
			slog.String("appointment_id", res.AppointmentID),
			slog.String("time", res.AssignedTime),
		)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:            response.OK(),
			ReservationResponse: *res,
		})
	}
}

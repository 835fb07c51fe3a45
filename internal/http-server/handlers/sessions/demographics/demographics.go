package demographics

import (
	"fmt"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/internal/biometrics"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type DemographicsSetter interface {
	SetDemographics(appointmentID string, d biometrics.Demographics) error
}

func New(log *slog.Logger, setter DemographicsSetter) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.demographics.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		var req api.DemographicsRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		if err := validate.Struct(req); err != nil {
			response.RenderError(w, r, fmt.Errorf("%w: %w", response.ErrInvalidInput, err), "invalid request")
			return
		}

		d := biometrics.Demographics{
			Age:      req.Age,
			Gender:   req.Gender,
			Province: req.Province,
		}

		if err := setter.SetDemographics(appointmentID, d); err != nil {
			log.Error("Failed to set demographics", slog.String("appointment_id", appointmentID), sl.Err(err))
			response.RenderError(w, r, err, "failed to set demographics")
			return
		}

		render.JSON(w, r, response.OK())
	}
}

package port

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/internal/hardware"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type SessionPortSelector interface {
	SelectPort(ctx context.Context, appointmentID, port string) (hardware.Selection, error)
}

type Response struct {
	response.Response
	Port      string `json:"port"`
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

// New points the session's bridge at a serial port. Only allowed while the
// temperature is being recorded.
func New(log *slog.Logger, selector SessionPortSelector) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.port.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		var req api.PortSelectRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		if err := validate.Struct(req); err != nil {
			response.RenderError(w, r, fmt.Errorf("%w: %w", response.ErrInvalidInput, err), "invalid request")
			return
		}

		sel, err := selector.SelectPort(r.Context(), appointmentID, req.Port)
		if err != nil {
			log.Error("Failed to select port",
				slog.String("appointment_id", appointmentID),
				slog.String("port", req.Port),
				sl.Err(err),
			)
			response.RenderError(w, r, err, "failed to select port")
			return
		}

		render.JSON(w, r, Response{
			Response:  response.OK(),
			Port:      sel.Port,
			Status:    sel.Status,
			Connected: sel.Connected,
		})
	}
}

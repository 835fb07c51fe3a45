package selectport

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
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type PortSelector interface {
	SelectPort(ctx context.Context, port string) (hardware.Selection, error)
}

type Response struct {
	response.Response
	Port      string `json:"port"`
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

func New(log *slog.Logger, selector PortSelector) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hardware.selectport.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		sel, err := selector.SelectPort(r.Context(), req.Port)
		if err != nil {
			log.Error("Failed to select port", slog.String("port", req.Port), sl.Err(err))
			response.RenderError(w, r, err, "failed to select port")
			return
		}

		log.Info("Serial port selected", slog.String("port", sel.Port), slog.Bool("connected", sel.Connected))

		render.JSON(w, r, Response{
			Response:  response.OK(),
			Port:      sel.Port,
			Status:    sel.Status,
			Connected: sel.Connected,
		})
	}
}

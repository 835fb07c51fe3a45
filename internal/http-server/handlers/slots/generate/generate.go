package generate

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SlotGenerator interface {
	GenerateSlots(ctx context.Context, doctorID string, req *api.SlotGenerateRequest) (int64, error)
}

type Request struct {
	api.SlotGenerateRequest
}

type Response struct {
	response.Response
	api.SlotGenerateResponse
}

func New(log *slog.Logger, generator SlotGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.generate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		doctorID := chi.URLParam(r, "id")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		added, err := generator.GenerateSlots(r.Context(), doctorID, &req.SlotGenerateRequest)
		if err != nil {
			log.Error("Failed to generate slots", sl.Err(err))
			response.RenderError(w, r, err, "failed to generate slots")
			return
		}

		log.Info("Slots generated", slog.String("doctor_id", doctorID), slog.Int64("added", added))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:             response.OK(),
			SlotGenerateResponse: api.SlotGenerateResponse{Added: added},
		})
	}
}

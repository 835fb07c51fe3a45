package delete

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

type SlotDeleter interface {
	DeleteSlots(ctx context.Context, doctorID string, req *api.SlotDeleteRequest) (*api.SlotDeleteResponse, error)
}

type Response struct {
	response.Response
	api.SlotDeleteResponse
}

func New(log *slog.Logger, deleter SlotDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.delete.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		doctorID := chi.URLParam(r, "id")

		var req api.SlotDeleteRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		res, err := deleter.DeleteSlots(r.Context(), doctorID, &req)
		if err != nil {
			log.Error("Failed to delete slots", sl.Err(err))
			response.RenderError(w, r, err, "failed to delete slots")
			return
		}

		log.Info("Slots deleted",
			slog.String("doctor_id", doctorID),
			slog.Int64("deleted", res.Deleted),
			slog.Int64("kept", res.Kept),
		)

		render.JSON(w, r, Response{
			Response:           response.OK(),
			SlotDeleteResponse: *res,
		})
	}
}

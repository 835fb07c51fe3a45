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

type SlotLister interface {
	ListSlots(ctx context.Context, doctorID, date string) ([]models.TimeSlot, error)
}

type Response struct {
	response.Response
	Slots []models.TimeSlot `json:"slots"`
}

// New lists a doctor's slots, optionally narrowed with ?date=YYYY-MM-DD.
func New(log *slog.Logger, lister SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		doctorID := chi.URLParam(r, "id")
		date := r.URL.Query().Get("date")

		slots, err := lister.ListSlots(r.Context(), doctorID, date)
		if err != nil {
			log.Error("Failed to list slots", sl.Err(err))
			response.RenderError(w, r, err, "failed to get slots")
			return
		}

		render.JSON(w, r, Response{
			Response: response.OK(),
			Slots:    slots,
		})
	}
}

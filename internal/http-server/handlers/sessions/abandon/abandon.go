package abandon

import (
	"log/slog"
	"net/http"

	"clinic-session-service/pkg/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SessionAbandoner interface {
	Abandon(appointmentID string) error
}

func New(log *slog.Logger, abandoner SessionAbandoner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.abandon.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		if err := abandoner.Abandon(appointmentID); err != nil {
			response.RenderError(w, r, err, "failed to abandon session")
			return
		}

		log.Info("Session abandoned", slog.String("appointment_id", appointmentID))

		render.JSON(w, r, response.OK())
	}
}

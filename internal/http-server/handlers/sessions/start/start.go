package start

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SessionStarter interface {
	Start(ctx context.Context, appointmentID string) error
}

// New moves the session from temperature capture into monitoring. It fails
// with 422 until temperature and demographics are both recorded.
func New(log *slog.Logger, starter SessionStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.start.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		if err := starter.Start(r.Context(), appointmentID); err != nil {
			log.Warn("Session not started", slog.String("appointment_id", appointmentID), sl.Err(err))
			response.RenderError(w, r, err, "failed to start session")
			return
		}

		log.Info("Session started", slog.String("appointment_id", appointmentID))

		render.JSON(w, r, response.OK())
	}
}

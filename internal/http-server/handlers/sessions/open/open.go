package open

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/internal/session"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SessionOpener interface {
	OpenSession(ctx context.Context, appointmentID string) (session.Snapshot, error)
}

type Response struct {
	response.Response
	Session session.Snapshot `json:"session"`
}

// New opens the encounter for an appointment, or returns the one already
// running in this process.
func New(log *slog.Logger, opener SessionOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.open.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		snap, err := opener.OpenSession(r.Context(), appointmentID)
		if err != nil {
			log.Error("Failed to open session", slog.String("appointment_id", appointmentID), sl.Err(err))
			response.RenderError(w, r, err, "failed to open session")
			return
		}

		log.Info("Session opened", slog.String("appointment_id", appointmentID), slog.String("phase", string(snap.Phase)))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: response.OK(),
			Session:  snap,
		})
	}
}

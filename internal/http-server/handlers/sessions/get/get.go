package get

import (
	"log/slog"
	"net/http"

	"clinic-session-service/internal/session"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SessionReader interface {
	Snapshot(appointmentID string) (session.Snapshot, error)
}

type Response struct {
	response.Response
	Session session.Snapshot `json:"session"`
}

func New(log *slog.Logger, reader SessionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		snap, err := reader.Snapshot(chi.URLParam(r, "appointmentId"))
		if err != nil {
			log.Debug("Session not available", sl.Err(err))
			response.RenderError(w, r, err, "failed to get session")
			return
		}

		render.JSON(w, r, Response{
			Response: response.OK(),
			Session:  snap,
		})
	}
}

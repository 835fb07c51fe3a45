package end

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/internal/inference"
	"clinic-session-service/internal/models"
	"clinic-session-service/internal/session"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SessionEnder interface {
	End(ctx context.Context, appointmentID string, prescription *string) (session.Outcome, error)
}

type Response struct {
	response.Response
	Saved         bool                  `json:"saved"`
	Prediction    inference.Prediction  `json:"prediction"`
	SessionRecord *models.SessionRecord `json:"sessionRecord,omitempty"`
}

// New ends the session and commits its record. When the commit fails the
// answer is 503 with saved=false; calling it again retries the save.
func New(log *slog.Logger, ender SessionEnder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.end.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := chi.URLParam(r, "appointmentId")

		var req api.SessionEndRequest

		// the body is optional
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		out, err := ender.End(r.Context(), appointmentID, req.Prescription)
		if err != nil {
			log.Error("Failed to end session", slog.String("appointment_id", appointmentID), sl.Err(err))

			status, body := response.FromError(err, "failed to end session")
			render.Status(r, status)

			if errors.Is(err, response.ErrNotSaved) {
				render.JSON(w, r, Response{
					Response:   body,
					Saved:      false,
					Prediction: out.Prediction,
				})
				return
			}

			render.JSON(w, r, body)
			return
		}

		log.Info("Session ended",
			slog.String("appointment_id", appointmentID),
			slog.String("prediction", out.Prediction.Prediction),
		)

		render.JSON(w, r, Response{
			Response:      response.OK(),
			Saved:         out.Saved,
			Prediction:    out.Prediction,
			SessionRecord: out.Record,
		})
	}
}

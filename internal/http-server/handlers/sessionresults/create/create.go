package create

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type ResultCommitter interface {
	CommitWithRetry(ctx context.Context, rec models.SessionRecord) (*models.SessionRecord, error)
}

type Response struct {
	response.Response
	SessionRecord *models.SessionRecord `json:"sessionRecord,omitempty"`
}

// New finalizes a session whose results were computed elsewhere. Posting the
// same appointment twice returns the record stored the first time.
func New(log *slog.Logger, committer ResultCommitter) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessionresults.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req api.SessionResultRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		log.Info("Request body decoded", slog.String("appointment_id", req.AppointmentID))

		if err := validate.Struct(req); err != nil {
			response.RenderError(w, r, fmt.Errorf("%w: %w", response.ErrInvalidInput, err), "invalid request")
			return
		}

		rec, err := committer.CommitWithRetry(r.Context(), req.Record())
		if err != nil {
			log.Error("Failed to save session results", sl.Err(err))
			response.RenderError(w, r, err, "failed to save session results")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:      response.OK(),
			SessionRecord: rec,
		})
	}
}

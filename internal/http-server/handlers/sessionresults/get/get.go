package get

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/internal/finalizer"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type ResultGetter interface {
	Get(ctx context.Context, appointmentID string) (*finalizer.Result, error)
}

type Response struct {
	response.Response
	*finalizer.Result
}

func New(log *slog.Logger, getter ResultGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessionresults.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		appointmentID := r.URL.Query().Get("appointmentId")
		if appointmentID == "" {
			response.RenderBadRequest(w, r, "appointmentId query parameter is required")
			return
		}

		res, err := getter.Get(r.Context(), appointmentID)
		if err != nil {
			log.Error("Failed to get session results", slog.String("appointment_id", appointmentID), sl.Err(err))
			response.RenderError(w, r, err, "failed to get session results")
			return
		}

		render.JSON(w, r, Response{
			Response: response.OK(),
			Result:   res,
		})
	}
}

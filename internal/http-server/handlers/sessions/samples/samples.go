package samples

import (
	"log/slog"
	"net/http"

	"clinic-session-service/internal/biometrics"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SampleIngester interface {
	Ingest(appointmentID string, s biometrics.Sample) error
}

// New accepts one biometric sample over HTTP. The MQTT consumer feeds the
// same path for devices that publish instead.
func New(log *slog.Logger, ingester SampleIngester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.samples.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var s biometrics.Sample

		if err := render.DecodeJSON(r.Body, &s); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.RenderBadRequest(w, r, "failed to decode request")
			return
		}

		if err := ingester.Ingest(chi.URLParam(r, "appointmentId"), s); err != nil {
			response.RenderError(w, r, err, "failed to ingest sample")
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.OK())
	}
}

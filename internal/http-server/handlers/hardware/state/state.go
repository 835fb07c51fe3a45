package state

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/internal/hardware"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type StateReader interface {
	State(ctx context.Context) (hardware.State, error)
}

type Response struct {
	response.Response
	hardware.State
}

// New proxies the bridge's latest thermometer reading. A null bodyTemp means
// the bridge is up but has no reading yet.
func New(log *slog.Logger, reader StateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hardware.state.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		st, err := reader.State(r.Context())
		if err != nil {
			log.Error("Failed to read bridge state", sl.Err(err))
			response.RenderError(w, r, err, "failed to read hardware state")
			return
		}

		render.JSON(w, r, Response{
			Response: response.OK(),
			State:    st,
		})
	}
}

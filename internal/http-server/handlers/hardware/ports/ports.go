package ports

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

type PortLister interface {
	Ports(ctx context.Context) (hardware.Ports, error)
}

type Response struct {
	response.Response
	hardware.Ports
}

func New(log *slog.Logger, lister PortLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hardware.ports.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ports, err := lister.Ports(r.Context())
		if err != nil {
			log.Error("Failed to list serial ports", sl.Err(err))
			response.RenderError(w, r, err, "failed to list ports")
			return
		}

		render.JSON(w, r, Response{
			Response: response.OK(),
			Ports:    ports,
		})
	}
}

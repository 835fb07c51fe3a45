package list

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-session-service/api"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type DoctorLister interface {
	ListDoctors(ctx context.Context) ([]api.DoctorListing, error)
}

type Response struct {
	response.Response
	Doctors []api.DoctorListing `json:"doctors"`
}

func New(log *slog.Logger, lister DoctorLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.doctors.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		doctors, err := lister.ListDoctors(r.Context())
		if err != nil {
			log.Error("Failed to list doctors", sl.Err(err))
			response.RenderError(w, r, err, "failed to fetch doctors")
			return
		}

		render.JSON(w, r, Response{
			Response: response.OK(),
			Doctors:  doctors,
		})
	}
}

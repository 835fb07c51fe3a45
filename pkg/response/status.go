package response

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type mapping struct {
	err    error
	status int
	code   ErrCode
}

// first match wins
var mappings = []mapping{
	{ErrNotSaved, http.StatusServiceUnavailable, NOT_SAVED},
	{ErrInvalidInput, http.StatusBadRequest, INVALID_INPUT},
	{ErrBadRequest, http.StatusBadRequest, BAD_REQUEST},
	{ErrNotFound, http.StatusNotFound, NOT_FOUND},
	{ErrLocked, http.StatusLocked, LOCKED},
	{ErrNoAvailability, http.StatusConflict, NO_AVAILABILITY},
	{ErrInvalidTransition, http.StatusConflict, INVALID_TRANSITION},
	{ErrAlreadyFinalized, http.StatusConflict, CONFLICT},
	{ErrConflict, http.StatusConflict, CONFLICT},
	{ErrPhaseGate, http.StatusUnprocessableEntity, PHASE_GATE},
	{ErrWrongPhase, http.StatusConflict, WRONG_PHASE},
	{ErrHardwareUnavailable, http.StatusServiceUnavailable, HARDWARE_UNAVAILABLE},
}

// FromError maps a service error to its HTTP status and error body. Unknown
// errors become 500 with the fallback message.
func FromError(err error, fallback string) (int, Response) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ValidationError(verrs)
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, Error(string(m.code), m.err.Error())
		}
	}

	return http.StatusInternalServerError, Error(string(FAILED_REQUEST), fallback)
}

// RenderError writes the mapped status and error body for err.
func RenderError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, body := FromError(err, fallback)

	render.Status(r, status)
	render.JSON(w, r, body)
}

// RenderBadRequest answers a body that could not be decoded.
func RenderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(string(BAD_REQUEST), msg))
}

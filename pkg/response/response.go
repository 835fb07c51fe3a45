package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Success       *bool `json:"success,omitempty"`
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST       ErrCode = "REQUEST_FAILED"
	BAD_REQUEST          ErrCode = "FAILED_TO_DECODE"
	INVALID_INPUT        ErrCode = "INVALID_INPUT"
	NOT_FOUND            ErrCode = "NOT_FOUND"
	LOCKED               ErrCode = "LOCKED"
	CONFLICT             ErrCode = "CONFLICT"
	NO_AVAILABILITY      ErrCode = "NO_AVAILABILITY"
	INVALID_TRANSITION   ErrCode = "INVALID_TRANSITION"
	HARDWARE_UNAVAILABLE ErrCode = "HARDWARE_UNAVAILABLE"
	PHASE_GATE           ErrCode = "PHASE_GATE"
	WRONG_PHASE          ErrCode = "WRONG_PHASE"
	NOT_SAVED            ErrCode = "NOT_SAVED"
)

var (
	ErrBadRequest           = errors.New("bad request")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("resource not found")
	ErrLocked               = errors.New("resource is locked")
	ErrConflict             = errors.New("conflict")
	ErrNoAvailability       = errors.New("no available slots remaining for this date")
	ErrInvalidTransition    = errors.New("appointment status transition not allowed")
	ErrAlreadyFinalized     = errors.New("session already finalized")
	ErrHardwareUnavailable  = errors.New("hardware bridge unavailable")
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrPhaseGate            = errors.New("session cannot start: temperature and demographics required")
	ErrWrongPhase           = errors.New("operation not allowed in current session phase")
	ErrNotSaved             = errors.New("session results were not saved")

	// ErrRaceLost is internal to reservation and is never rendered.
	ErrRaceLost = errors.New("slot taken concurrently")
)

func Error(code, msg string) Response {
	failed := false

	return Response{
		Success: &failed,
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

func OK() Response {
	ok := true

	return Response{Success: &ok}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is required", err.Field()))
		case "email":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be a valid email", err.Field()))
		case "min":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param()))
		case "datetime":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must match %s", err.Field(), err.Param()))
		default:
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is invalid", err.Field()))
		}
	}

	return Error(string(INVALID_INPUT), strings.Join(errMsg, ", "))
}

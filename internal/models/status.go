package models

import (
	"fmt"

	"clinic-session-service/pkg/response"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

// InProgressLabel is shown while a session runs. It is a display label and
// never a persisted AppointmentStatus.
const InProgressLabel = "IN_PROGRESS"

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusCancelled: nil,
	StatusCompleted: nil,
}

func ParseStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown appointment status %q: %w", s, response.ErrInvalidInput)
	}

	return st, nil
}

func (s AppointmentStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// CheckTransition returns response.ErrInvalidTransition when from→to is not in the table.
func CheckTransition(from, to AppointmentStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, response.ErrInvalidTransition)
	}

	return nil
}

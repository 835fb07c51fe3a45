package finalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/cenkalti/backoff/v4"
)

type Store interface {
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetSessionRecord(ctx context.Context, appointmentID string) (*models.SessionRecord, error)
	FinalizeSession(ctx context.Context, rec *models.SessionRecord, from models.AppointmentStatus) (*models.SessionRecord, error)
}

type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Result pairs a stored record with its appointment (doctor included).
type Result struct {
	Record      *models.SessionRecord `json:"sessionRecord"`
	Appointment *models.Appointment   `json:"appointment"`
}

type Finalizer struct {
	log    *slog.Logger
	store  Store
	policy RetryPolicy
}

func New(log *slog.Logger, store Store, policy RetryPolicy) *Finalizer {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}

	return &Finalizer{
		log:    log.With(slog.String("component", "finalizer")),
		store:  store,
		policy: policy,
	}
}

// Commit completes the appointment and stores its session record as one unit.
// Committing an already completed appointment returns the stored record.
func (f *Finalizer) Commit(ctx context.Context, rec models.SessionRecord) (*models.SessionRecord, error) {
	const op = "finalizer.Commit"

	if rec.AppointmentID == "" {
		return nil, fmt.Errorf("%s: appointment id is required: %w", op, response.ErrInvalidInput)
	}

	appt, err := f.store.GetAppointment(ctx, rec.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if appt.Status == models.StatusCompleted {
		return f.existing(ctx, op, rec.AppointmentID)
	}

	if err := models.CheckTransition(appt.Status, models.StatusCompleted); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := f.store.FinalizeSession(ctx, &rec, appt.Status)
	if err == nil {
		return saved, nil
	}

	if errors.Is(err, response.ErrConflict) || errors.Is(err, response.ErrAlreadyFinalized) {
		if existing, gerr := f.store.GetSessionRecord(ctx, rec.AppointmentID); gerr == nil {
			return existing, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// CommitWithRetry retries Commit with exponential backoff. Missing
// appointments and forbidden transitions fail at once; running out of
// attempts yields response.ErrNotSaved.
func (f *Finalizer) CommitWithRetry(ctx context.Context, rec models.SessionRecord) (*models.SessionRecord, error) {
	const op = "finalizer.CommitWithRetry"

	log := f.log.With(
		slog.String("op", op),
		slog.String("appointment_id", rec.AppointmentID),
	)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.policy.InitialInterval
	eb.MaxInterval = f.policy.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, f.policy.MaxAttempts-1), ctx)

	attempt := 0
	saved, err := backoff.RetryNotifyWithData(func() (*models.SessionRecord, error) {
		attempt++

		saved, err := f.Commit(ctx, rec)
		if err != nil && permanent(err) {
			return nil, backoff.Permanent(err)
		}

		return saved, err
	}, b, func(err error, wait time.Duration) {
		log.Warn("finalize attempt failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			sl.Err(err),
		)
	})
	if err != nil {
		if permanent(err) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		log.Error("session results not saved", slog.Int("attempts", attempt), sl.Err(err))

		return nil, fmt.Errorf("%s: %w: %v", op, response.ErrNotSaved, err)
	}

	log.Info("session finalized", slog.String("record_id", saved.ID), slog.Int("attempts", attempt))

	return saved, nil
}

func (f *Finalizer) Get(ctx context.Context, appointmentID string) (*Result, error) {
	const op = "finalizer.Get"

	rec, err := f.store.GetSessionRecord(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	appt, err := f.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Result{Record: rec, Appointment: appt}, nil
}

func (f *Finalizer) existing(ctx context.Context, op, appointmentID string) (*models.SessionRecord, error) {
	rec, err := f.store.GetSessionRecord(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: completed without record: %w", op, err)
	}

	return rec, nil
}

func permanent(err error) bool {
	return errors.Is(err, response.ErrNotFound) ||
		errors.Is(err, response.ErrInvalidTransition) ||
		errors.Is(err, response.ErrInvalidInput)
}

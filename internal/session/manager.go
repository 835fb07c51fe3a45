package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clinic-session-service/internal/biometrics"
	"clinic-session-service/internal/hardware"
	"clinic-session-service/internal/inference"
	"clinic-session-service/internal/lock"
	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"golang.org/x/sync/singleflight"
)

type Appointments interface {
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetSessionRecord(ctx context.Context, appointmentID string) (*models.SessionRecord, error)
}

type Options struct {
	LockTTL      time.Duration
	PollInterval time.Duration
	Tick         time.Duration
}

type entry struct {
	ctrl  *Controller
	token string
}

// Manager owns the live controllers of this process. A Redis lock per
// appointment keeps a second process from running the same encounter.
type Manager struct {
	log          *slog.Logger
	appointments Appointments
	locker       lock.Locker
	bridge       Bridge
	predictor    Predictor
	committer    Committer
	opts         Options

	mu       sync.Mutex
	sessions map[string]*entry

	// opening collapses concurrent opens of one appointment.
	opening singleflight.Group
}

func NewManager(
	log *slog.Logger,
	appointments Appointments,
	locker lock.Locker,
	bridge Bridge,
	predictor Predictor,
	committer Committer,
	opts Options,
) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Hour
	}

	return &Manager{
		log:          log.With(slog.String("component", "session")),
		appointments: appointments,
		locker:       locker,
		bridge:       bridge,
		predictor:    predictor,
		committer:    committer,
		opts:         opts,
		sessions:     make(map[string]*entry),
	}
}

func lockKey(appointmentID string) string {
	return "session:" + appointmentID
}

// Open returns the running controller for the appointment, creating it when
// none exists. Completed and cancelled appointments cannot be opened.
// Opens of different appointments do not wait on each other.
func (m *Manager) Open(ctx context.Context, appointmentID string) (*Controller, error) {
	const op = "session.Manager.Open"

	if ctrl, ok := m.lookup(appointmentID); ok {
		return ctrl, nil
	}

	v, err, _ := m.opening.Do(appointmentID, func() (any, error) {
		return m.open(ctx, appointmentID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return v.(*Controller), nil
}

func (m *Manager) open(ctx context.Context, appointmentID string) (*Controller, error) {
	if ctrl, ok := m.lookup(appointmentID); ok {
		return ctrl, nil
	}

	appt, err := m.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case models.StatusCompleted:
		return nil, response.ErrAlreadyFinalized
	case models.StatusCancelled:
		return nil, fmt.Errorf("appointment cancelled: %w", response.ErrInvalidTransition)
	}

	token, ok, err := m.locker.Lock(ctx, lockKey(appointmentID), m.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session running elsewhere: %w", response.ErrLocked)
	}

	ctrl := newController(m.log, appointmentID, m)
	ctrl.onRelease = func() { m.release(appointmentID, ctrl) }

	m.mu.Lock()
	m.sessions[appointmentID] = &entry{ctrl: ctrl, token: token}
	m.mu.Unlock()

	ctrl.begin()

	m.log.Info("session opened", slog.String("appointment_id", appointmentID))

	return ctrl, nil
}

func (m *Manager) lookup(appointmentID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[appointmentID]
	if !ok {
		return nil, false
	}

	return e.ctrl, true
}

func (m *Manager) Get(appointmentID string) (*Controller, error) {
	const op = "session.Manager.Get"

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[appointmentID]
	if !ok {
		return nil, fmt.Errorf("%s: no open session: %w", op, response.ErrNotFound)
	}

	return e.ctrl, nil
}

// Ingest routes a live sample to the session of the appointment.
func (m *Manager) Ingest(appointmentID string, s biometrics.Sample) error {
	const op = "session.Manager.Ingest"

	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := ctrl.Ingest(s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Manager) release(appointmentID string, ctrl *Controller) {
	m.mu.Lock()
	e, ok := m.sessions[appointmentID]
	if ok && e.ctrl == ctrl {
		delete(m.sessions, appointmentID)
	}
	m.mu.Unlock()

	if !ok || e.ctrl != ctrl {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.locker.Unlock(ctx, lockKey(appointmentID), e.token); err != nil {
		m.log.Warn("failed to release session lock",
			slog.String("appointment_id", appointmentID),
			sl.Err(err),
		)
	}
}

// Close abandons every open session. Nothing is persisted for them.
func (m *Manager) Close() {
	m.mu.Lock()
	ctrls := make([]*Controller, 0, len(m.sessions))
	for _, e := range m.sessions {
		ctrls = append(ctrls, e.ctrl)
	}
	m.mu.Unlock()

	for _, c := range ctrls {
		c.Abandon()
	}
}

// The methods below address a running session by appointment id.

func (m *Manager) OpenSession(ctx context.Context, appointmentID string) (Snapshot, error) {
	ctrl, err := m.Open(ctx, appointmentID)
	if err != nil {
		return Snapshot{}, err
	}

	return ctrl.State(), nil
}

func (m *Manager) Snapshot(appointmentID string) (Snapshot, error) {
	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return Snapshot{}, err
	}

	return ctrl.State(), nil
}

func (m *Manager) SelectPort(ctx context.Context, appointmentID, port string) (hardware.Selection, error) {
	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return hardware.Selection{}, err
	}

	return ctrl.SelectPort(ctx, port)
}

func (m *Manager) RecordTemperature(appointmentID string) (float64, error) {
	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return 0, err
	}

	return ctrl.RecordTemperature()
}

func (m *Manager) SetDemographics(appointmentID string, d biometrics.Demographics) error {
	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return err
	}

	return ctrl.SetDemographics(d)
}

func (m *Manager) Start(ctx context.Context, appointmentID string) error {
	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return err
	}

	return ctrl.Start(ctx)
}

// End ends the running session. Once the record is saved the controller is
// gone, so a repeated End is answered from the stored record.
func (m *Manager) End(ctx context.Context, appointmentID string, prescription *string) (Outcome, error) {
	ctrl, err := m.Get(appointmentID)
	if errors.Is(err, response.ErrNotFound) {
		return m.ended(ctx, appointmentID, err)
	}
	if err != nil {
		return Outcome{}, err
	}

	return ctrl.End(ctx, prescription)
}

func (m *Manager) ended(ctx context.Context, appointmentID string, notOpen error) (Outcome, error) {
	const op = "session.Manager.End"

	appt, err := m.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	if appt.Status != models.StatusCompleted {
		return Outcome{}, notOpen
	}

	rec, err := m.appointments.GetSessionRecord(ctx, appointmentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	return Outcome{
		Record: rec,
		Prediction: inference.Prediction{
			Prediction:  rec.Prediction,
			Probability: rec.Probability,
			Confidence:  rec.Confidence,
			InputUsed:   rec.Averages,
		},
		Saved: true,
	}, nil
}

func (m *Manager) Abandon(appointmentID string) error {
	ctrl, err := m.Get(appointmentID)
	if err != nil {
		return err
	}

	ctrl.Abandon()

	return nil
}

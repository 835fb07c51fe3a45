package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clinic-session-service/api"
	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-playground/validator/v10"
)

const DefaultRoom = "Room 1"

// statusRetries bounds how often a status change is re-read after losing a
// compare-and-set to a concurrent writer.
const statusRetries = 3

type Store interface {
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)

	// Slots
	CreateSlots(ctx context.Context, slots []models.TimeSlot) (int64, error)
	ListSlots(ctx context.Context, doctorID string, date *time.Time) ([]models.TimeSlot, error)
	ListFreeSlots(ctx context.Context, doctorID string, date time.Time) ([]models.TimeSlot, error)
	ListUpcomingFreeSlots(ctx context.Context, from time.Time) ([]models.TimeSlot, error)
	ClaimSlot(ctx context.Context, slotID string, appt *models.Appointment) (*models.Appointment, error)
	DeleteSlot(ctx context.Context, doctorID, slotID string) error
	DeleteSlotsForDate(ctx context.Context, doctorID string, date time.Time, room *string) (deleted, kept int64, err error)

	// Appointments
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	CountBookings(ctx context.Context, doctorID string, date time.Time) (int, error)
	UpdateAppointmentStatus(ctx context.Context, id string, from, to models.AppointmentStatus) error
}

type Service struct {
	log      *slog.Logger
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(log *slog.Logger, store Store) *Service {
	return &Service{
		log:      log.With(slog.String("component", "service")),
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", response.ErrInvalidInput, err)
	}

	return nil
}

// Doctors

// ListDoctors returns every doctor with the free slots from today on, which
// is what a patient picks a doctor and date from.
func (s *Service) ListDoctors(ctx context.Context) ([]api.DoctorListing, error) {
	const op = "service.ListDoctors"

	doctors, err := s.store.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots, err := s.store.ListUpcomingFreeSlots(ctx, models.CalendarDate(s.now()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byDoctor := make(map[string][]models.TimeSlot, len(doctors))
	for _, slot := range slots {
		byDoctor[slot.DoctorID] = append(byDoctor[slot.DoctorID], slot)
	}

	out := make([]api.DoctorListing, 0, len(doctors))
	for _, d := range doctors {
		free := byDoctor[d.ID]
		if free == nil {
			free = []models.TimeSlot{}
		}

		out = append(out, api.DoctorListing{Doctor: d, TimeSlots: free})
	}

	return out, nil
}

// Slots

func (s *Service) GenerateSlots(ctx context.Context, doctorID string, req *api.SlotGenerateRequest) (int64, error) {
	const op = "service.GenerateSlots"

	if err := s.check(req); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid date: %w", op, response.ErrInvalidInput)
	}

	start, err := time.Parse(models.TimeLayout, req.StartTime)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid start time: %w", op, response.ErrInvalidInput)
	}

	room := req.Room
	if room == "" {
		room = DefaultRoom
	}

	step := time.Duration(req.DurationMinutes) * time.Minute
	slots := make([]models.TimeSlot, 0, req.Count)

	for i := 0; i < req.Count; i++ {
		cur := start.Add(time.Duration(i) * step)
		if cur.Day() != start.Day() {
			return 0, fmt.Errorf("%s: slot %d rolls past midnight: %w", op, i+1, response.ErrInvalidInput)
		}

		slots = append(slots, models.TimeSlot{
			DoctorID: doctorID,
			Date:     date,
			Time:     cur.Format(models.TimeLayout),
			Room:     room,
		})
	}

	added, err := s.store.CreateSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return added, nil
}

// ListSlots returns the doctor's slots, for one date when date is not empty.
func (s *Service) ListSlots(ctx context.Context, doctorID, date string) ([]models.TimeSlot, error) {
	const op = "service.ListSlots"

	var day *time.Time
	if date != "" {
		d, err := models.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrInvalidInput)
		}
		day = &d
	}

	slots, err := s.store.ListSlots(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// DeleteSlots removes one slot by id, or all unbooked slots of a date
// (optionally one room). Booked slots always stay.
func (s *Service) DeleteSlots(ctx context.Context, doctorID string, req *api.SlotDeleteRequest) (*api.SlotDeleteResponse, error) {
	const op = "service.DeleteSlots"

	switch {
	case req.SlotID != nil && *req.SlotID != "":
		if err := s.store.DeleteSlot(ctx, doctorID, *req.SlotID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return &api.SlotDeleteResponse{Deleted: 1}, nil

	case req.Date != nil && *req.Date != "":
		date, err := models.ParseDate(*req.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrInvalidInput)
		}

		room := req.Room
		if room != nil && *room == "" {
			room = nil
		}

		deleted, kept, err := s.store.DeleteSlotsForDate(ctx, doctorID, date, room)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return &api.SlotDeleteResponse{Deleted: deleted, Kept: kept}, nil
	}

	return nil, fmt.Errorf("%s: slot id or date is required: %w", op, response.ErrInvalidInput)
}

// Appointments

// ReserveAppointment books the earliest free slot of the doctor on the
// requested date. Free slots are read once; a slot lost to a concurrent
// booking is skipped in favour of the next one from the same list.
func (s *Service) ReserveAppointment(ctx context.Context, req *api.ReservationRequest) (*api.ReservationResponse, error) {
	const op = "service.ReserveAppointment"

	if err := s.check(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrInvalidInput)
	}

	if _, err := s.store.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	candidates, err := s.store.ListFreeSlots(ctx, req.DoctorID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("doctor_id", req.DoctorID),
		slog.String("date", date.Format(models.DateLayout)),
	)

	appt := &models.Appointment{
		DoctorID:     req.DoctorID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: emptyToNil(req.PatientPhone),
		Date:         date,
		Notes:        emptyToNil(req.Notes),
	}

	for _, slot := range candidates {
		booked, err := s.store.ClaimSlot(ctx, slot.ID, appt)
		if errors.Is(err, response.ErrRaceLost) {
			log.Debug("slot taken concurrently, trying next", slog.String("slot_id", slot.ID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		// the count is display-only; the booking is already committed
		number, err := s.store.CountBookings(ctx, req.DoctorID, date)
		if err != nil {
			log.Warn("failed to count bookings", sl.Err(err))
		}

		log.Info("appointment reserved",
			slog.String("appointment_id", booked.ID),
			slog.String("time", booked.TimeSlot),
			slog.String("room", booked.Room),
		)

		return &api.ReservationResponse{
			AppointmentID: booked.ID,
			BookingNumber: number,
			AssignedTime:  booked.TimeSlot,
			AssignedRoom:  booked.Room,
		}, nil
	}

	return nil, fmt.Errorf("%s: %w", op, response.ErrNoAvailability)
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "service.GetAppointment"

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "service.ConfirmAppointment"

	appt, err := s.transition(ctx, id, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

// CancelAppointment never frees the slot: a slot is booked at most once.
func (s *Service) CancelAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "service.CancelAppointment"

	appt, err := s.transition(ctx, id, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

func (s *Service) transition(ctx context.Context, id string, to models.AppointmentStatus) (*models.Appointment, error) {
	var lastErr error

	for attempt := 0; attempt < statusRetries; attempt++ {
		appt, err := s.store.GetAppointment(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := models.CheckTransition(appt.Status, to); err != nil {
			return nil, err
		}

		err = s.store.UpdateAppointmentStatus(ctx, id, appt.Status, to)
		if errors.Is(err, response.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		appt.Status = to
		return appt, nil
	}

	return nil, lastErr
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
)

func (s *Storage) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointment"

	var a models.Appointment
	var status string
	var d models.Doctor

	err := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.doctor_id, a.patient_name, a.patient_email, a.patient_phone,
			a.appointment_date, a.time_slot, a.room, a.status, a.paid, a.notes, a.created_at,
			d.name, d.specialty
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.id=$1`, id).
		Scan(
			&a.ID,
			&a.DoctorID,
			&a.PatientName,
			&a.PatientEmail,
			&a.PatientPhone,
			&a.Date,
			&a.TimeSlot,
			&a.Room,
			&status,
			&a.Paid,
			&a.Notes,
			&a.CreatedAt,
			&d.Name,
			&d.Specialty,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Status, err = models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Date = models.CalendarDate(a.Date)
	d.ID = a.DoctorID
	a.Doctor = &d

	return &a, nil
}

// CountBookings counts non-cancelled appointments of a doctor on one date.
func (s *Storage) CountBookings(ctx context.Context, doctorID string, date time.Time) (int, error) {
	const op = "storage.postgres.CountBookings"

	var n int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments
		WHERE doctor_id=$1 AND appointment_date=$2 AND status<>$3`,
		doctorID, date.Format(models.DateLayout), string(models.StatusCancelled)).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// UpdateAppointmentStatus moves an appointment from one status to another
// only if it still holds `from`. A lost compare-and-set yields response.ErrConflict.
func (s *Storage) UpdateAppointmentStatus(ctx context.Context, id string, from, to models.AppointmentStatus) error {
	const op = "storage.postgres.UpdateAppointmentStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status=$3 WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrConflict)
	}

	return nil
}

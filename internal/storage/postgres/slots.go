package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"

	"github.com/google/uuid"
)

// CreateSlots inserts the slots in one statement; rows that already exist for
// the same doctor, date, time and room are skipped.
func (s *Storage) CreateSlots(ctx context.Context, slots []models.TimeSlot) (int64, error) {
	const op = "storage.postgres.CreateSlots"

	if len(slots) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(slots)*5)
	placeholders := make([]string, 0, len(slots))

	for i, slot := range slots {
		id := slot.ID
		if id == "" {
			id = uuid.NewString()
		}

		n := i * 5
		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, FALSE)", n+1, n+2, n+3, n+4, n+5))
		args = append(args, id, slot.DoctorID, slot.Date.Format(models.DateLayout), slot.Time, slot.Room)
	}

	query := fmt.Sprintf(`
		INSERT INTO time_slots (id, doctor_id, slot_date, slot_time, room, is_booked)
		VALUES %s
		ON CONFLICT (doctor_id, slot_date, slot_time, room) DO NOTHING`,
		strings.Join(placeholders, ","),
	)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return 0, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// ListSlots returns every slot of the doctor, optionally restricted to one date.
func (s *Storage) ListSlots(ctx context.Context, doctorID string, date *time.Time) ([]models.TimeSlot, error) {
	const op = "storage.postgres.ListSlots"

	query := `SELECT id, doctor_id, slot_date, slot_time, room, is_booked
		FROM time_slots WHERE doctor_id=$1`
	args := []any{doctorID}

	if date != nil {
		query += ` AND slot_date=$2`
		args = append(args, date.Format(models.DateLayout))
	}

	query += ` ORDER BY slot_date ASC, slot_time ASC`

	slots, err := s.querySlots(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// ListFreeSlots returns the unbooked slots of one doctor and date, earliest first.
func (s *Storage) ListFreeSlots(ctx context.Context, doctorID string, date time.Time) ([]models.TimeSlot, error) {
	const op = "storage.postgres.ListFreeSlots"

	slots, err := s.querySlots(ctx,
		`SELECT id, doctor_id, slot_date, slot_time, room, is_booked
		FROM time_slots
		WHERE doctor_id=$1 AND slot_date=$2 AND is_booked=FALSE
		ORDER BY slot_time ASC`,
		doctorID, date.Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// ListUpcomingFreeSlots returns the unbooked slots of every doctor dated on
// or after from, grouped by doctor and earliest first.
func (s *Storage) ListUpcomingFreeSlots(ctx context.Context, from time.Time) ([]models.TimeSlot, error) {
	const op = "storage.postgres.ListUpcomingFreeSlots"

	slots, err := s.querySlots(ctx,
		`SELECT id, doctor_id, slot_date, slot_time, room, is_booked
		FROM time_slots
		WHERE is_booked=FALSE AND slot_date>=$1
		ORDER BY doctor_id ASC, slot_date ASC, slot_time ASC`,
		from.Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func (s *Storage) querySlots(ctx context.Context, query string, args ...any) ([]models.TimeSlot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	slots := make([]models.TimeSlot, 0)

	for rows.Next() {
		var slot models.TimeSlot

		if err := rows.Scan(
			&slot.ID,
			&slot.DoctorID,
			&slot.Date,
			&slot.Time,
			&slot.Room,
			&slot.IsBooked,
		); err != nil {
			return nil, err
		}

		slot.Date = models.CalendarDate(slot.Date)
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

// ClaimSlot flips is_booked false→true on one slot and inserts the
// appointment in the same short transaction. A slot that is already booked
// (or gone) yields response.ErrRaceLost and nothing is written.
func (s *Storage) ClaimSlot(ctx context.Context, slotID string, appt *models.Appointment) (*models.Appointment, error) {
	const op = "storage.postgres.ClaimSlot"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var slotTime, room string

	err = tx.QueryRowContext(ctx,
		`UPDATE time_slots SET is_booked=TRUE
		WHERE id=$1 AND is_booked=FALSE
		RETURNING slot_time, room`, slotID).
		Scan(&slotTime, &room)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrRaceLost)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booked := *appt
	if booked.ID == "" {
		booked.ID = uuid.NewString()
	}
	booked.TimeSlot = slotTime
	booked.Room = room
	booked.Status = models.StatusPending

	err = tx.QueryRowContext(ctx,
		`INSERT INTO appointments
		(id, doctor_id, patient_name, patient_email, patient_phone, appointment_date, time_slot, room, status, paid, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		booked.ID,
		booked.DoctorID,
		booked.PatientName,
		booked.PatientEmail,
		booked.PatientPhone,
		booked.Date.Format(models.DateLayout),
		booked.TimeSlot,
		booked.Room,
		string(booked.Status),
		booked.Paid,
		booked.Notes,
	).Scan(&booked.CreatedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: insert appointment: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return &booked, nil
}

// DeleteSlot removes a single unbooked slot. Booked slots are kept and
// reported as response.ErrConflict.
func (s *Storage) DeleteSlot(ctx context.Context, doctorID, slotID string) error {
	const op = "storage.postgres.DeleteSlot"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM time_slots WHERE id=$1 AND doctor_id=$2 AND is_booked=FALSE`, slotID, doctorID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n > 0 {
		return nil
	}

	var booked bool

	err = s.db.QueryRowContext(ctx,
		`SELECT is_booked FROM time_slots WHERE id=$1 AND doctor_id=$2`, slotID, doctorID).Scan(&booked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: slot is booked: %w", op, response.ErrConflict)
}

// DeleteSlotsForDate removes the unbooked slots of a doctor on one date,
// optionally only in one room, and reports how many booked slots were kept.
func (s *Storage) DeleteSlotsForDate(ctx context.Context, doctorID string, date time.Time, room *string) (deleted, kept int64, err error) {
	const op = "storage.postgres.DeleteSlotsForDate"

	args := []any{doctorID, date.Format(models.DateLayout)}
	roomFilter := ""
	if room != nil {
		roomFilter = ` AND room=$3`
		args = append(args, *room)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM time_slots WHERE doctor_id=$1 AND slot_date=$2 AND is_booked=FALSE`+roomFilter, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM time_slots WHERE doctor_id=$1 AND slot_date=$2 AND is_booked=TRUE`+roomFilter, args...).
		Scan(&kept)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: count kept: %w", op, err)
	}

	return deleted, kept, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"

	"github.com/google/uuid"
)

func (s *Storage) GetSessionRecord(ctx context.Context, appointmentID string) (*models.SessionRecord, error) {
	const op = "storage.postgres.GetSessionRecord"

	var r models.SessionRecord
	var prediction sql.NullString
	var probability, confidence sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, appointment_id, duration, recorded_temp, prescription,
			prediction, probability, confidence,
			avg_heart_rate, avg_body_temp, avg_speech_noise, avg_movement, avg_ecg_variability, avg_facial_stress,
			age, gender, province, created_at
		FROM session_records WHERE appointment_id=$1`, appointmentID).
		Scan(
			&r.ID,
			&r.AppointmentID,
			&r.Duration,
			&r.RecordedTemp,
			&r.Prescription,
			&prediction,
			&probability,
			&confidence,
			&r.Averages.HeartRate,
			&r.Averages.BodyTemp,
			&r.Averages.SpeechNoiseDB,
			&r.Averages.MovementLevel,
			&r.Averages.ECGVariability,
			&r.Averages.FacialStressScore,
			&r.Averages.Age,
			&r.Averages.Gender,
			&r.Averages.Province,
			&r.CreatedAt,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.Prediction = prediction.String
	r.Probability = probability.Float64
	r.Confidence = confidence.Float64

	return &r, nil
}

// FinalizeSession completes the appointment and creates its session record
// as one unit. The status change is a compare-and-set on `from`; if it loses,
// nothing is written and response.ErrConflict is returned. A second record for
// the same appointment yields response.ErrAlreadyFinalized.
func (s *Storage) FinalizeSession(ctx context.Context, rec *models.SessionRecord, from models.AppointmentStatus) (*models.SessionRecord, error) {
	const op = "storage.postgres.FinalizeSession"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status=$3 WHERE id=$1 AND status=$2`,
		rec.AppointmentID, string(from), string(models.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("%s: complete appointment: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return nil, fmt.Errorf("%s: status changed: %w", op, response.ErrConflict)
	}

	saved := *rec
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO session_records
		(id, appointment_id, duration, recorded_temp, prescription, prediction, probability, confidence,
		avg_heart_rate, avg_body_temp, avg_speech_noise, avg_movement, avg_ecg_variability, avg_facial_stress,
		age, gender, province)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at`,
		saved.ID,
		saved.AppointmentID,
		saved.Duration,
		saved.RecordedTemp,
		saved.Prescription,
		saved.Prediction,
		saved.Probability,
		saved.Confidence,
		saved.Averages.HeartRate,
		saved.Averages.BodyTemp,
		saved.Averages.SpeechNoiseDB,
		saved.Averages.MovementLevel,
		saved.Averages.ECGVariability,
		saved.Averages.FacialStressScore,
		saved.Averages.Age,
		saved.Averages.Gender,
		saved.Averages.Province,
	).Scan(&saved.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, response.ErrAlreadyFinalized)
		}

		return nil, fmt.Errorf("%s: insert record: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return &saved, nil
}

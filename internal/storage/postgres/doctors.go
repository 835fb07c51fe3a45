package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
)

// ListDoctors returns every doctor, best rated first.
func (s *Storage) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	const op = "storage.postgres.ListDoctors"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, specialty, consult_fee, rating, experience, available_days, available_time
		FROM doctors ORDER BY rating DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	doctors := make([]models.Doctor, 0)

	for rows.Next() {
		var d models.Doctor

		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Specialty,
			&d.ConsultFee,
			&d.Rating,
			&d.Experience,
			&d.AvailableDays,
			&d.AvailableTime,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		doctors = append(doctors, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doctors, nil
}

func (s *Storage) GetDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	const op = "storage.postgres.GetDoctor"

	var d models.Doctor

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, specialty, consult_fee, rating, experience, available_days, available_time
		FROM doctors WHERE id=$1`, id).
		Scan(
			&d.ID,
			&d.Name,
			&d.Specialty,
			&d.ConsultFee,
			&d.Rating,
			&d.Experience,
			&d.AvailableDays,
			&d.AvailableTime,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &d, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/repository"
)

// ProfileRepository reads doctor cards and appointments for the profile view.
type ProfileRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProfileRepository constructs a PostgreSQL-backed profile repository.
func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	return &ProfileRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetDoctorInfo returns the doctor card linked to the account.
func (r *ProfileRepository) GetDoctorInfo(ctx context.Context, accountID int64) (*domain.DoctorInfo, error) {
	stmt, args, err := r.builder.
		Select(
			"d.id",
			"e.name",
			"q.name",
			"s.name",
			"COALESCE(d.photo_url, '')",
		).
		From("doctors d").
		Join("educational_institutions e ON e.id = d.education_id").
		Join("qualifications q ON q.id = d.qualification_id").
		Join("specializations s ON s.id = d.specialization_id").
		Where(squirrel.Eq{"d.account_id": accountID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select doctor info sql: %w", err)
	}

	var info domain.DoctorInfo
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&info.DoctorID,
		&info.Education,
		&info.Qualification,
		&info.Specialization,
		&info.PhotoURL,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan doctor info: %w", err)
	}

	return &info, nil
}

// ListAppointments returns the patient's appointments ordered by date.
func (r *ProfileRepository) ListAppointments(ctx context.Context, patientID int64) ([]domain.Appointment, error) {
	stmt, args, err := r.builder.
		Select(
			"a.id",
			"a.appointment_date",
			"a.status",
			"c.id",
			"c.name",
			"COALESCE(c.address, '')",
			"d.id",
			"u.name",
			"u.surname",
			"COALESCE(u.patronymic, '')",
			"s.name",
		).
		From("appointments a").
		Join("clinics c ON c.id = a.clinic_id").
		Join("doctors d ON d.id = a.doctor_id").
		Join("accounts u ON u.id = d.account_id").
		Join("specializations s ON s.id = d.specialization_id").
		Where(squirrel.Eq{"a.patient_id": patientID}).
		OrderBy("a.appointment_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list appointments sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.Date,
			&a.Status,
			&a.Clinic.ID,
			&a.Clinic.Name,
			&a.Clinic.Address,
			&a.Doctor.ID,
			&a.Doctor.Name,
			&a.Doctor.Surname,
			&a.Doctor.Patronymic,
			&a.Doctor.Specialization,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}

	return appointments, nil
}

var _ port.ProfileRepository = (*ProfileRepository)(nil)

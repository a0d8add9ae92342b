package port

import (
	"context"

	"github.com/arklim/medportal-api/internal/core/domain"
)

// RoleRepository reads role definitions.
type RoleRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Role, error)
}

// ProfileRepository reads the medical data attached to an account.
type ProfileRepository interface {
	GetDoctorInfo(ctx context.Context, accountID int64) (*domain.DoctorInfo, error)
	ListAppointments(ctx context.Context, patientID int64) ([]domain.Appointment, error)
}

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Username   string `json:"username" binding:"required,max=64"`
	Password   string `json:"password" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Surname    string `json:"surname" binding:"required"`
	Patronymic string `json:"patronymic"`
	Phone      string `json:"phone_number"`
}

// LoginRequest defines the payload for the login endpoint. Identifier is an email or username.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"username" binding:"required"`
	Password   string `json:"password" form:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ForgotPasswordRequest accepts the email either as JSON or as a query parameter.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" binding:"required"`
}

// ResetPasswordRequest sets a new password for the authenticated caller.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" form:"new_password" binding:"required"`
}

// ConfirmPasswordResetRequest redeems an emailed reset token.
type ConfirmPasswordResetRequest struct {
	Token       string `json:"token" form:"token" binding:"required"`
	NewPassword string `json:"new_password" form:"new_password" binding:"required"`
}

// UpdateProfileRequest replaces the editable profile fields. ID defaults to the caller.
type UpdateProfileRequest struct {
	ID         int64  `json:"id"`
	Username   string `json:"username" binding:"required,max=64"`
	Name       string `json:"name" binding:"required"`
	Surname    string `json:"surname" binding:"required"`
	Patronymic string `json:"patronymic"`
	Phone      string `json:"phone_number"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Patronymic   string    `json:"patronymic,omitempty"`
	Phone        string    `json:"phone_number,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	IsSuperuser  bool      `json:"is_superuser"`
	RoleID       int64     `json:"role_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

func newAccountResponse(account domain.Account) AccountResponse {
	return AccountResponse{
		ID:           account.ID,
		Email:        account.Email,
		Username:     account.Username,
		Name:         account.Name,
		Surname:      account.Surname,
		Patronymic:   account.Patronymic,
		Phone:        account.Phone,
		IsActive:     account.IsActive,
		IsVerified:   account.IsVerified,
		IsSuperuser:  account.IsSuperuser,
		RoleID:       account.RoleID,
		RegisteredAt: account.RegisteredAt,
	}
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message string          `json:"message"`
	User    AccountResponse `json:"user"`
}

// VerifyResponse is returned after a verification token is redeemed.
type VerifyResponse struct {
	Message string          `json:"message"`
	User    AccountResponse `json:"user"`
}

// RoleResponse describes the caller's role.
type RoleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"permissions,omitempty"`
}

// DoctorInfoResponse is the doctor card shown on /me.
type DoctorInfoResponse struct {
	DoctorID       int64  `json:"doctor_id"`
	Education      string `json:"education"`
	Qualification  string `json:"qualification"`
	Specialization string `json:"specialization"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

// ClinicResponse is the clinic embedded into appointments.
type ClinicResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// AppointmentDoctorResponse is the doctor embedded into appointments.
type AppointmentDoctorResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Patronymic     string `json:"patronymic,omitempty"`
	Specialization string `json:"specialization"`
}

// AppointmentResponse is one of the patient's appointments.
type AppointmentResponse struct {
	ID     int64                     `json:"appointment_id"`
	Date   time.Time                 `json:"appointment_date"`
	Status string                    `json:"status"`
	Clinic ClinicResponse            `json:"clinic"`
	Doctor AppointmentDoctorResponse `json:"doctor"`
}

// ProfileResponse is returned by /users/me.
type ProfileResponse struct {
	AccountResponse
	Role         *RoleResponse         `json:"role,omitempty"`
	DoctorInfo   *DoctorInfoResponse   `json:"doctor_info,omitempty"`
	Appointments []AppointmentResponse `json:"appointments,omitempty"`
}

func newProfileResponse(profile domain.Profile) ProfileResponse {
	resp := ProfileResponse{AccountResponse: newAccountResponse(profile.Account)}

	if profile.Role != nil {
		resp.Role = &RoleResponse{
			ID:          profile.Role.ID,
			Name:        profile.Role.Name,
			Permissions: profile.Role.Permissions,
		}
	}

	if profile.Doctor != nil {
		resp.DoctorInfo = &DoctorInfoResponse{
			DoctorID:       profile.Doctor.DoctorID,
			Education:      profile.Doctor.Education,
			Qualification:  profile.Doctor.Qualification,
			Specialization: profile.Doctor.Specialization,
			PhotoURL:       profile.Doctor.PhotoURL,
		}
	}

	for _, appt := range profile.Appointments {
		resp.Appointments = append(resp.Appointments, AppointmentResponse{
			ID:     appt.ID,
			Date:   appt.Date,
			Status: appt.Status,
			Clinic: ClinicResponse{
				ID:      appt.Clinic.ID,
				Name:    appt.Clinic.Name,
				Address: appt.Clinic.Address,
			},
			Doctor: AppointmentDoctorResponse{
				ID:             appt.Doctor.ID,
				Name:           appt.Doctor.Name,
				Surname:        appt.Doctor.Surname,
				Patronymic:     appt.Doctor.Patronymic,
				Specialization: appt.Doctor.Specialization,
			},
		})
	}

	return resp
}

// HealthResponse describes the health endpoint payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists dependency checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

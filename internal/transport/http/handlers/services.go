package handlers

import (
	"context"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/infra/security"
	"github.com/arklim/medportal-api/internal/usecase"
)

// Authenticator is the subset of usecase.AuthService used by the HTTP layer.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (usecase.LoginResult, error)
	ParseAccessToken(ctx context.Context, raw string) (*security.AccessTokenClaims, error)
	Logout(ctx context.Context, claims *security.AccessTokenClaims) error
}

// IdentityManager is the subset of usecase.IdentityService used by the HTTP layer.
type IdentityManager interface {
	Register(ctx context.Context, input usecase.RegisterInput) (usecase.RegistrationResult, error)
	Verify(ctx context.Context, token string, callerID int64) (*domain.Account, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, callerID int64, newPassword string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	CheckResetToken(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, callerID, targetID int64, fields domain.ProfileFields) (*domain.Account, error)
	Delete(ctx context.Context, email string, callerID int64) (*domain.Account, error)
	Profile(ctx context.Context, callerID int64) (*domain.Profile, error)
}

var (
	_ Authenticator   = (*usecase.AuthService)(nil)
	_ IdentityManager = (*usecase.IdentityService)(nil)
)

package usecase

import "errors"

var (
	// ErrAccountNotFound indicates the referenced account, token holder, or email does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrForbidden indicates the caller does not own the target account.
	ErrForbidden = errors.New("operation not permitted for caller")
	// ErrConflict indicates the email or username is already taken.
	ErrConflict = errors.New("email or username already registered")
	// ErrDeliveryFailed indicates the notification email could not be sent.
	ErrDeliveryFailed = errors.New("email delivery failed")
	// ErrInvalidInput indicates a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive indicates the account is disabled.
	ErrAccountInactive = errors.New("account is not active")
	// ErrInvalidAccessToken indicates the provided access token is malformed, revoked, or signature validation failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the provided access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrResetTokenInvalid indicates the reset token is unknown, expired, or already used.
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
)

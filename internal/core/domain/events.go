package domain

import "time"

// AccountRegisteredEvent represents the payload for medportal.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    int64
	Username     string
	Email        string
	RoleID       int64
	RegisteredAt time.Time
}

// AccountVerifiedEvent represents the payload for medportal.account.verified messages.
type AccountVerifiedEvent struct {
	EventID    string
	AccountID  int64
	VerifiedAt time.Time
}

// PasswordResetRequestedEvent represents the payload for medportal.account.password_reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         int64
	MaskedDestination string
	RequestedAt       time.Time
	ExpiresAt         time.Time
}

// PasswordChangedEvent represents the payload for medportal.account.password_changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID int64
	ChangedAt time.Time
	Method    string
}

// AccountDeletedEvent represents the payload for medportal.account.deleted messages.
type AccountDeletedEvent struct {
	EventID   string
	AccountID int64
	DeletedAt time.Time
}

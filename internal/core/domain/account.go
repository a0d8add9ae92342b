package domain

import "time"

// DefaultRoleID is assigned to accounts created through self-registration.
const DefaultRoleID int64 = 2

// Role names seeded by the initial migration.
const (
	RoleAdmin   = "admin"
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string

	Name       string
	Surname    string
	Patronymic string
	Phone      string

	IsActive    bool
	IsVerified  bool
	IsSuperuser bool

	// VerificationToken holds the digest of the emailed token while the account awaits confirmation.
	VerificationToken *string
	RoleID            int64
	RegisteredAt      time.Time
}

// PendingVerification reports whether the account still waits for its email to be confirmed.
func (a Account) PendingVerification() bool {
	return !a.IsVerified && a.VerificationToken != nil && *a.VerificationToken != ""
}

// ProfileFields are the mutable, user-editable parts of an account.
type ProfileFields struct {
	Username   string
	Name       string
	Surname    string
	Patronymic string
	Phone      string
}

// Role is a named permission bundle referenced by accounts.
type Role struct {
	ID          int64
	Name        string
	Permissions string
}

// PasswordContext carries account attributes used to reject passwords derived from them.
type PasswordContext struct {
	Username string
	Email    string
	Phone    string
}

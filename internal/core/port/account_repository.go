package port

import (
	"context"

	"github.com/arklim/medportal-api/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (*domain.Account, error)
	// ExistsByEmailOrUsername reports whether either value is taken, ignoring excludeID when positive.
	ExistsByEmailOrUsername(ctx context.Context, email, username string, excludeID int64) (bool, error)
	// MarkVerified flips the account to verified only while tokenHash is still stored; it returns false otherwise.
	MarkVerified(ctx context.Context, id int64, tokenHash string) (bool, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateProfile(ctx context.Context, id int64, fields domain.ProfileFields) (*domain.Account, error)
	Delete(ctx context.Context, id int64) error
}

// AccountTransactor runs fn against a repository bound to a single database transaction.
// Returning an error from fn rolls the transaction back.
type AccountTransactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo AccountRepository) error) error
}

package port

import (
	"context"
	"time"
)

// ResetTokenStore keeps single-use password reset tokens keyed by their digest.
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash string, accountID int64, ttl time.Duration) error
	Lookup(ctx context.Context, tokenHash string) (int64, bool, error)
	// Consume returns the account bound to tokenHash and removes it atomically.
	Consume(ctx context.Context, tokenHash string) (int64, bool, error)
}

// TokenRevocationStore tracks revoked access token identifiers until they expire.
type TokenRevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}


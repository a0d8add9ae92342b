package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/medportal-api/internal/core/port"
)

const defaultResetPrefix = "medportal:reset"

// ResetTokenRepository stores password reset token digests with their owning account.
type ResetTokenRepository struct {
	client *red.Client
	prefix string
}

// NewResetTokenRepository wires a Redis client into a reset token repository.
func NewResetTokenRepository(client *red.Client, keyPrefix string) *ResetTokenRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultResetPrefix
	}
	return &ResetTokenRepository{client: client, prefix: prefix}
}

// Save binds tokenHash to accountID for ttl.
func (r *ResetTokenRepository) Save(ctx context.Context, tokenHash string, accountID int64, ttl time.Duration) error {
	if tokenHash == "" {
		return errors.New("token hash must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := r.client.Set(ctx, r.prefix+":"+tokenHash, strconv.FormatInt(accountID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set reset token: %w", err)
	}
	return nil
}

// Lookup reports the owner of tokenHash without redeeming it.
func (r *ResetTokenRepository) Lookup(ctx context.Context, tokenHash string) (int64, bool, error) {
	if tokenHash == "" {
		return 0, false, nil
	}

	value, err := r.client.Get(ctx, r.prefix+":"+tokenHash).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get reset token: %w", err)
	}
	return parseOwner(value)
}

// Consume atomically reads and deletes the token, so each token redeems at most once.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string) (int64, bool, error) {
	if tokenHash == "" {
		return 0, false, nil
	}

	value, err := r.client.GetDel(ctx, r.prefix+":"+tokenHash).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis getdel reset token: %w", err)
	}
	return parseOwner(value)
}

func parseOwner(value string) (int64, bool, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse reset token owner: %w", err)
	}
	return id, true, nil
}

var _ port.ResetTokenStore = (*ResetTokenRepository)(nil)

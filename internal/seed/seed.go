// Package seed fills a development database with fake, already verified accounts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/repository"
)

// Result counts what a Run produced.
type Result struct {
	Created []int64
	Skipped int
}

// Seeder creates fake accounts through the account repository.
type Seeder struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	faker    *gofakeit.Faker
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a Seeder. A zero seed picks a random one.
func New(accounts port.AccountRepository, hasher port.PasswordHasher, seed int64, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{
		accounts: accounts,
		hasher:   hasher,
		faker:    gofakeit.New(seed),
		logger:   log,
		now:      time.Now,
	}
}

// Run creates count accounts sharing password. Accounts whose generated email or
// username is already taken are skipped.
func (s *Seeder) Run(ctx context.Context, count int, password string, roleID int64) (Result, error) {
	if count <= 0 {
		return Result{}, nil
	}
	if password == "" {
		return Result{}, errors.New("seed password is required")
	}
	if roleID <= 0 {
		roleID = domain.DefaultRoleID
	}

	// One hash is enough; every seeded account shares the password.
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, fmt.Errorf("hash seed password: %w", err)
	}

	var result Result
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		account := s.fakeAccount(i, hash, roleID)
		id, err := s.accounts.Create(ctx, account)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("create account %s: %w", account.Username, err)
		}
		result.Created = append(result.Created, id)
	}

	s.logger.Info("seed accounts created",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *Seeder) fakeAccount(i int, passwordHash string, roleID int64) domain.Account {
	username := fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), i)
	return domain.Account{
		Email:        strings.ToLower(fmt.Sprintf("%s@%s", username, s.faker.DomainName())),
		Username:     username,
		PasswordHash: passwordHash,
		Name:         s.faker.FirstName(),
		Surname:      s.faker.LastName(),
		Patronymic:   s.faker.FirstName(),
		Phone:        s.faker.Phone(),
		IsActive:     true,
		IsVerified:   true,
		RoleID:       roleID,
		RegisteredAt: s.now().UTC(),
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/infra/logger"
	"github.com/arklim/medportal-api/internal/infra/security"
	"github.com/arklim/medportal-api/internal/repository"
)

// TokenTypeBearer is returned alongside issued access tokens.
const TokenTypeBearer = "bearer"

// LoginResult is the outcome of a successful credential check.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	Account     domain.Account
}

// AuthService coordinates authentication flows.
type AuthService struct {
	accounts    port.AccountRepository
	roles       port.RoleRepository
	hasher      port.PasswordHasher
	issuer      *security.TokenIssuer
	revocations port.TokenRevocationStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance. roles is optional.
func NewAuthService(
	accounts port.AccountRepository,
	roles port.RoleRepository,
	hasher port.PasswordHasher,
	issuer *security.TokenIssuer,
	revocations port.TokenRevocationStore,
	log *zap.Logger,
) (*AuthService, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if revocations == nil {
		return nil, fmt.Errorf("revocation store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		accounts:    accounts,
		roles:       roles,
		hasher:      hasher,
		issuer:      issuer,
		revocations: revocations,
		logger:      log,
		now:         time.Now,
	}, nil
}

// Login checks credentials for an email or username and issues an access token.
// Unverified accounts may log in since verifying requires an authenticated caller.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if strings.Contains(identifier, "@") {
		identifier = normalizeEmail(identifier)
	}

	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		if errors.Is(err, security.ErrMalformedHash) {
			logger.WithContext(ctx, s.logger).Error("stored password hash is malformed", zap.Int64("account_id", account.ID))
		}
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !account.IsActive {
		return LoginResult{}, ErrAccountInactive
	}

	token, claims, err := s.issuer.Issue(account.ID, s.roleName(ctx, account.RoleID))
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	logger.WithContext(ctx, s.logger).Info("login succeeded",
		zap.Int64("account_id", account.ID),
		zap.String("jti", claims.ID),
	)

	return LoginResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   s.issuer.TTL(),
		Account:     sanitize(*account),
	}, nil
}

func (s *AuthService) roleName(ctx context.Context, roleID int64) string {
	if s.roles == nil {
		return ""
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("role lookup failed", zap.Int64("role_id", roleID), zap.Error(err))
		}
		return ""
	}
	return role.Name
}

// ParseAccessToken validates raw and rejects revoked token ids.
func (s *AuthService) ParseAccessToken(ctx context.Context, raw string) (*security.AccessTokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidAccessToken
	}

	claims, err := s.issuer.Parse(raw)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, ErrInvalidAccessToken
	}
	if claims.ID == "" {
		return nil, ErrInvalidAccessToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// Logout denylists the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *security.AccessTokenClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidAccessToken
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	logger.WithContext(ctx, s.logger).Info("access token revoked", zap.String("jti", claims.ID))
	return nil
}

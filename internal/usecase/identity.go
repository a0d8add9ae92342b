package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/infra/logger"
	"github.com/arklim/medportal-api/internal/infra/security"
	"github.com/arklim/medportal-api/internal/repository"
)

const (
	tracerName = "github.com/arklim/medportal-api/internal/usecase"

	defaultResetTokenTTL = time.Hour

	passwordChangeAuthenticated = "authenticated"
	passwordChangeResetToken    = "reset_token"
)

// Operation names reported to LifecycleMetrics.
const (
	OperationRegister             = "register"
	OperationVerify               = "verify"
	OperationRequestPasswordReset = "request_password_reset"
	OperationResetPassword        = "reset_password"
	OperationConfirmPasswordReset = "confirm_password_reset"
	OperationUpdateProfile        = "update_profile"
	OperationDelete               = "delete"
	OperationProfile              = "profile"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email      string
	Username   string
	Password   string
	Name       string
	Surname    string
	Patronymic string
	Phone      string
}

// RegistrationResult is the persisted account plus the raw verification token that was emailed.
type RegistrationResult struct {
	Account domain.Account
	Token   string
}

// IdentityDependencies groups the collaborators of IdentityService.
// Roles, Profiles, Events and Metrics are optional.
type IdentityDependencies struct {
	Accounts      port.AccountRepository
	Transactor    port.AccountTransactor
	Roles         port.RoleRepository
	Profiles      port.ProfileRepository
	Hasher        port.PasswordHasher
	Policy        port.PasswordPolicyValidator
	Notifier      port.AccountNotifier
	ResetTokens   port.ResetTokenStore
	Events        port.EventPublisher
	Metrics       port.LifecycleMetrics
	ResetTokenTTL time.Duration
	Logger        *zap.Logger
}

// IdentityService owns every mutation of an account: registration, verification,
// password changes, profile edits and deletion.
type IdentityService struct {
	accounts    port.AccountRepository
	tx          port.AccountTransactor
	roles       port.RoleRepository
	profiles    port.ProfileRepository
	hasher      port.PasswordHasher
	policy      port.PasswordPolicyValidator
	notifier    port.AccountNotifier
	resetTokens port.ResetTokenStore
	events      port.EventPublisher
	metrics     port.LifecycleMetrics
	resetTTL    time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newToken    func() (string, error)
}

// NewIdentityService validates deps and constructs the service.
func NewIdentityService(deps IdentityDependencies) (*IdentityService, error) {
	switch {
	case deps.Accounts == nil:
		return nil, fmt.Errorf("account repository is required")
	case deps.Transactor == nil:
		return nil, fmt.Errorf("account transactor is required")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("password hasher is required")
	case deps.Policy == nil:
		return nil, fmt.Errorf("password policy is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("account notifier is required")
	case deps.ResetTokens == nil:
		return nil, fmt.Errorf("reset token store is required")
	}

	ttl := deps.ResetTokenTTL
	if ttl <= 0 {
		ttl = defaultResetTokenTTL
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &IdentityService{
		accounts:    deps.Accounts,
		tx:          deps.Transactor,
		roles:       deps.Roles,
		profiles:    deps.Profiles,
		hasher:      deps.Hasher,
		policy:      deps.Policy,
		notifier:    deps.Notifier,
		resetTokens: deps.ResetTokens,
		events:      deps.Events,
		metrics:     deps.Metrics,
		resetTTL:    ttl,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		newToken: func() (string, error) {
			return security.GenerateSecureToken(security.TokenBytes)
		},
	}, nil
}

// Register creates an unverified account and emails its verification link.
// The insert and the email share one transaction: a failed send leaves nothing persisted.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (result RegistrationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.Register")
	defer func() { s.finish(span, OperationRegister, err) }()

	input = normalizeRegisterInput(input)
	if err := validateRegisterInput(input); err != nil {
		return RegistrationResult{}, err
	}

	if err := s.policy.Validate(input.Password, domain.PasswordContext{
		Username: input.Username,
		Email:    input.Email,
		Phone:    input.Phone,
	}); err != nil {
		return RegistrationResult{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("hash password: %w", err)
	}

	rawToken, err := s.newToken()
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("generate verification token: %w", err)
	}
	tokenHash := security.HashToken(rawToken)

	account := domain.Account{
		Email:             input.Email,
		Username:          input.Username,
		PasswordHash:      passwordHash,
		Name:              input.Name,
		Surname:           input.Surname,
		Patronymic:        input.Patronymic,
		Phone:             input.Phone,
		IsActive:          true,
		VerificationToken: &tokenHash,
		RoleID:            domain.DefaultRoleID,
		RegisteredAt:      s.now().UTC(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repo port.AccountRepository) error {
		taken, err := repo.ExistsByEmailOrUsername(ctx, account.Email, account.Username, 0)
		if err != nil {
			return fmt.Errorf("check existing account: %w", err)
		}
		if taken {
			return ErrConflict
		}

		id, err := repo.Create(ctx, account)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConflict
			}
			return fmt.Errorf("create account: %w", err)
		}
		account.ID = id

		if err := s.notifier.SendVerification(ctx, account, rawToken); err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return nil
	})
	if err != nil {
		return RegistrationResult{}, err
	}

	span.SetAttributes(attribute.Int64("account.id", account.ID))
	logger.WithContext(ctx, s.logger).Info("account registered",
		zap.Int64("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	if s.events != nil {
		if err := s.events.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			AccountID:    account.ID,
			Username:     account.Username,
			Email:        account.Email,
			RoleID:       account.RoleID,
			RegisteredAt: account.RegisteredAt,
		}); err != nil {
			s.logger.Warn("publish account registered failed", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}

	return RegistrationResult{Account: sanitize(account), Token: rawToken}, nil
}

// Verify redeems a verification token on behalf of callerID.
func (s *IdentityService) Verify(ctx context.Context, token string, callerID int64) (_ *domain.Account, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.Verify")
	defer func() { s.finish(span, OperationVerify, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrAccountNotFound
	}
	tokenHash := security.HashToken(token)

	account, err := s.accounts.GetByVerificationToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup verification token: %w", err)
	}
	if !account.PendingVerification() {
		return nil, ErrAccountNotFound
	}
	if account.ID != callerID {
		return nil, ErrForbidden
	}

	// Zero rows means a concurrent redeem consumed the token first.
	updated, err := s.accounts.MarkVerified(ctx, account.ID, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if !updated {
		return nil, ErrAccountNotFound
	}

	account.IsVerified = true
	account.VerificationToken = nil

	logger.WithContext(ctx, s.logger).Info("account verified", zap.Int64("account_id", account.ID))

	if s.events != nil {
		if err := s.events.PublishAccountVerified(ctx, domain.AccountVerifiedEvent{
			EventID:    uuid.NewString(),
			AccountID:  account.ID,
			VerifiedAt: s.now().UTC(),
		}); err != nil {
			s.logger.Warn("publish account verified failed", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}

	verified := sanitize(*account)
	return &verified, nil
}

// RequestPasswordReset issues a single-use reset token and emails the reset link.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.RequestPasswordReset")
	defer func() { s.finish(span, OperationRequestPasswordReset, err) }()

	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account by email: %w", err)
	}

	rawToken, err := s.newToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	tokenHash := security.HashToken(rawToken)

	if err := s.resetTokens.Save(ctx, tokenHash, account.ID, s.resetTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, *account, rawToken, s.resetTTL); err != nil {
		if _, _, cleanupErr := s.resetTokens.Consume(ctx, tokenHash); cleanupErr != nil {
			s.logger.Warn("discard undelivered reset token failed", zap.Int64("account_id", account.ID), zap.Error(cleanupErr))
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	now := s.now().UTC()
	logger.WithContext(ctx, s.logger).Info("password reset requested",
		zap.Int64("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	if s.events != nil {
		if err := s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
			EventID:           uuid.NewString(),
			AccountID:         account.ID,
			MaskedDestination: logger.MaskEmail(account.Email),
			RequestedAt:       now,
			ExpiresAt:         now.Add(s.resetTTL),
		}); err != nil {
			s.logger.Warn("publish password reset requested failed", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}

	return nil
}

// ResetPassword replaces the caller's password hash.
func (s *IdentityService) ResetPassword(ctx context.Context, callerID int64, newPassword string) (err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.ResetPassword")
	defer func() { s.finish(span, OperationResetPassword, err) }()

	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	account, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	return s.applyPassword(ctx, account, newPassword, passwordChangeAuthenticated)
}

// ConfirmPasswordReset redeems an emailed reset token and sets newPassword on its account.
// The token is consumed even when the new password is rejected after lookup.
func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.ConfirmPasswordReset")
	defer func() { s.finish(span, OperationConfirmPasswordReset, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := s.policy.Validate(newPassword, domain.PasswordContext{}); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	accountID, ok, err := s.resetTokens.Consume(ctx, security.HashToken(token))
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !ok {
		return ErrResetTokenInvalid
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	return s.applyPassword(ctx, account, newPassword, passwordChangeResetToken)
}

// CheckResetToken reports whether token is a live reset token without redeeming it.
func (s *IdentityService) CheckResetToken(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "IdentityService.CheckResetToken")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}

	_, ok, err := s.resetTokens.Lookup(ctx, security.HashToken(token))
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !ok {
		return ErrResetTokenInvalid
	}
	return nil
}

func (s *IdentityService) applyPassword(ctx context.Context, account *domain.Account, newPassword, method string) error {
	if err := s.policy.Validate(newPassword, passwordContext(account)); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	logger.WithContext(ctx, s.logger).Info("password changed",
		zap.Int64("account_id", account.ID),
		zap.String("method", method),
	)

	if s.events != nil {
		if err := s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			ChangedAt: s.now().UTC(),
			Method:    method,
		}); err != nil {
			s.logger.Warn("publish password changed failed", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}

	return nil
}

// UpdateProfile replaces the editable profile fields of targetID. Only the owner may edit.
func (s *IdentityService) UpdateProfile(ctx context.Context, callerID, targetID int64, fields domain.ProfileFields) (_ *domain.Account, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.UpdateProfile")
	defer func() { s.finish(span, OperationUpdateProfile, err) }()

	if callerID != targetID {
		return nil, ErrForbidden
	}

	fields = normalizeProfileFields(fields)
	if fields.Username == "" || fields.Name == "" || fields.Surname == "" {
		return nil, fmt.Errorf("%w: username, name and surname are required", ErrInvalidInput)
	}

	current, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if fields.Username != current.Username {
		taken, err := s.accounts.ExistsByEmailOrUsername(ctx, "", fields.Username, targetID)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			return nil, ErrConflict
		}
	}

	updated, err := s.accounts.UpdateProfile(ctx, targetID, fields)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	logger.WithContext(ctx, s.logger).Info("profile updated",
		zap.Int64("account_id", updated.ID),
		zap.String("username", updated.Username),
		zap.String("phone", logger.MaskPhone(updated.Phone)),
	)

	result := sanitize(*updated)
	return &result, nil
}

// Delete permanently removes the account registered under email, if the caller owns it.
func (s *IdentityService) Delete(ctx context.Context, email string, callerID int64) (_ *domain.Account, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.Delete")
	defer func() { s.finish(span, OperationDelete, err) }()

	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account by email: %w", err)
	}
	if account.ID != callerID {
		return nil, ErrForbidden
	}

	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("delete account: %w", err)
	}

	logger.WithContext(ctx, s.logger).Info("account deleted", zap.Int64("account_id", account.ID))

	if s.events != nil {
		if err := s.events.PublishAccountDeleted(ctx, domain.AccountDeletedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			DeletedAt: s.now().UTC(),
		}); err != nil {
			s.logger.Warn("publish account deleted failed", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}

	deleted := sanitize(*account)
	return &deleted, nil
}

// Profile assembles the caller's account with role and medical data.
func (s *IdentityService) Profile(ctx context.Context, callerID int64) (_ *domain.Profile, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.Profile")
	defer func() { s.finish(span, OperationProfile, err) }()

	account, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	profile := &domain.Profile{Account: sanitize(*account)}

	if s.roles == nil {
		return profile, nil
	}
	role, err := s.roles.GetByID(ctx, account.RoleID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return profile, nil
	case err != nil:
		return nil, fmt.Errorf("lookup role: %w", err)
	}
	profile.Role = role

	if s.profiles == nil {
		return profile, nil
	}

	switch role.Name {
	case domain.RoleDoctor:
		doctor, err := s.profiles.GetDoctorInfo(ctx, account.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup doctor card: %w", err)
		}
		profile.Doctor = doctor
	case domain.RolePatient:
		appointments, err := s.profiles.ListAppointments(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		profile.Appointments = appointments
	}

	return profile, nil
}

func (s *IdentityService) finish(span trace.Span, operation string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	}
	span.End()

	if s.metrics != nil {
		s.metrics.RecordOperation(operation, outcome(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrResetTokenInvalid):
		return "invalid_token"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPasswordPolicyViolation):
		return "invalid"
	default:
		return "error"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRegisterInput(in RegisterInput) RegisterInput {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Patronymic = strings.TrimSpace(in.Patronymic)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func validateRegisterInput(in RegisterInput) error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"email", in.Email},
		{"username", in.Username},
		{"password", in.Password},
		{"name", in.Name},
		{"surname", in.Surname},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
	}

	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}

	return nil
}

func normalizeProfileFields(fields domain.ProfileFields) domain.ProfileFields {
	fields.Username = strings.TrimSpace(fields.Username)
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Surname = strings.TrimSpace(fields.Surname)
	fields.Patronymic = strings.TrimSpace(fields.Patronymic)
	fields.Phone = strings.TrimSpace(fields.Phone)
	return fields
}

func passwordContext(account *domain.Account) domain.PasswordContext {
	return domain.PasswordContext{
		Username: account.Username,
		Email:    account.Email,
		Phone:    account.Phone,
	}
}

func sanitize(account domain.Account) domain.Account {
	account.PasswordHash = ""
	return account
}

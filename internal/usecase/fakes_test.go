package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/infra/security"
	"github.com/arklim/medportal-api/internal/repository"
)

type memoryAccounts struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]domain.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{nextID: 1, accounts: make(map[int64]domain.Account)}
}

func (m *memoryAccounts) Create(_ context.Context, account domain.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == account.Email || existing.Username == account.Username {
			return 0, repository.ErrConflict
		}
	}
	account.ID = m.nextID
	m.nextID++
	m.accounts[account.ID] = account
	return account.ID, nil
}

func (m *memoryAccounts) find(match func(domain.Account) bool) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if match(account) {
			copied := account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.ID == id })
}

func (m *memoryAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.Email == email })
}

func (m *memoryAccounts) GetByIdentifier(_ context.Context, identifier string) (*domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.Email == identifier || a.Username == identifier })
}

func (m *memoryAccounts) GetByVerificationToken(_ context.Context, tokenHash string) (*domain.Account, error) {
	return m.find(func(a domain.Account) bool {
		return a.VerificationToken != nil && *a.VerificationToken == tokenHash
	})
}

func (m *memoryAccounts) ExistsByEmailOrUsername(_ context.Context, email, username string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == excludeID {
			continue
		}
		if (email != "" && a.Email == email) || (username != "" && a.Username == username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryAccounts) MarkVerified(_ context.Context, id int64, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.VerificationToken == nil || *a.VerificationToken != tokenHash {
		return false, nil
	}
	a.IsVerified = true
	a.VerificationToken = nil
	m.accounts[id] = a
	return true, nil
}

func (m *memoryAccounts) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = hash
	m.accounts[id] = a
	return nil
}

func (m *memoryAccounts) UpdateProfile(_ context.Context, id int64, fields domain.ProfileFields) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, other := range m.accounts {
		if other.ID != id && other.Username == fields.Username {
			return nil, repository.ErrConflict
		}
	}
	a.Username = fields.Username
	a.Name = fields.Name
	a.Surname = fields.Surname
	a.Patronymic = fields.Patronymic
	a.Phone = fields.Phone
	m.accounts[id] = a
	copied := a
	return &copied, nil
}

func (m *memoryAccounts) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

// WithinTx restores the previous state when fn fails.
func (m *memoryAccounts) WithinTx(ctx context.Context, fn func(ctx context.Context, repo port.AccountRepository) error) error {
	m.mu.Lock()
	snapshot := make(map[int64]domain.Account, len(m.accounts))
	for id, a := range m.accounts {
		snapshot[id] = a
	}
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.accounts = snapshot
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type sentMail struct {
	kind     string
	account  domain.Account
	token    string
	validFor time.Duration
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) SendVerification(_ context.Context, account domain.Account, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: "verification", account: account, token: token})
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, account domain.Account, token string, validFor time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: "reset", account: account, token: token, validFor: validFor})
	return nil
}

func (n *fakeNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("expected an email to be sent")
	}
	return n.sent[len(n.sent)-1]
}

type memoryResetTokens struct {
	mu     sync.Mutex
	tokens map[string]int64
	ttls   map[string]time.Duration
}

func newMemoryResetTokens() *memoryResetTokens {
	return &memoryResetTokens{tokens: make(map[string]int64), ttls: make(map[string]time.Duration)}
}

func (m *memoryResetTokens) Save(_ context.Context, tokenHash string, accountID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = accountID
	m.ttls[tokenHash] = ttl
	return nil
}

func (m *memoryResetTokens) Lookup(_ context.Context, tokenHash string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[tokenHash]
	return id, ok, nil
}

func (m *memoryResetTokens) Consume(_ context.Context, tokenHash string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[tokenHash]
	delete(m.tokens, tokenHash)
	return id, ok, nil
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	verified   []domain.AccountVerifiedEvent
	resets     []domain.PasswordResetRequestedEvent
	changed    []domain.PasswordChangedEvent
	deleted    []domain.AccountDeletedEvent
	err        error
}

func (r *recordingEvents) PublishAccountRegistered(_ context.Context, e domain.AccountRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, e)
	return r.err
}

func (r *recordingEvents) PublishAccountVerified(_ context.Context, e domain.AccountVerifiedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verified = append(r.verified, e)
	return r.err
}

func (r *recordingEvents) PublishPasswordResetRequested(_ context.Context, e domain.PasswordResetRequestedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, e)
	return r.err
}

func (r *recordingEvents) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, e)
	return r.err
}

func (r *recordingEvents) PublishAccountDeleted(_ context.Context, e domain.AccountDeletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, e)
	return r.err
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) RecordOperation(operation, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[operation+"/"+outcome]++
}

func (c *countingMetrics) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

type staticRoles map[int64]domain.Role

func (s staticRoles) GetByID(_ context.Context, id int64) (*domain.Role, error) {
	role, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

type staticProfiles struct {
	doctors      map[int64]domain.DoctorInfo
	appointments map[int64][]domain.Appointment
	err          error
}

func (s staticProfiles) GetDoctorInfo(_ context.Context, accountID int64) (*domain.DoctorInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.doctors[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &info, nil
}

func (s staticProfiles) ListAppointments(_ context.Context, patientID int64) ([]domain.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.appointments[patientID], nil
}

type revocationSet struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func (r *revocationSet) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = make(map[string]time.Duration)
	}
	r.revoked[jti] = ttl
	return nil
}

func (r *revocationSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[jti]
	return ok, nil
}

var errSMTPDown = errors.New("smtp: connection refused")

func newTestHasher(t *testing.T) *security.Argon2Hasher {
	t.Helper()
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	return hasher
}

type identityFixture struct {
	service     *IdentityService
	accounts    *memoryAccounts
	notifier    *fakeNotifier
	resetTokens *memoryResetTokens
	events      *recordingEvents
	metrics     *countingMetrics
	hasher      *security.Argon2Hasher
}

type fixtureOption func(*IdentityDependencies)

func newIdentityFixture(t *testing.T, opts ...fixtureOption) *identityFixture {
	t.Helper()

	f := &identityFixture{
		accounts:    newMemoryAccounts(),
		notifier:    &fakeNotifier{},
		resetTokens: newMemoryResetTokens(),
		events:      &recordingEvents{},
		metrics:     &countingMetrics{},
		hasher:      newTestHasher(t),
	}

	deps := IdentityDependencies{
		Accounts:    f.accounts,
		Transactor:  f.accounts,
		Roles:       staticRoles{1: {ID: 1, Name: domain.RoleAdmin}, 2: {ID: 2, Name: domain.RolePatient}, 3: {ID: 3, Name: domain.RoleDoctor}},
		Hasher:      f.hasher,
		Policy:      security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 1}),
		Notifier:    f.notifier,
		ResetTokens: f.resetTokens,
		Events:      f.events,
		Metrics:     f.metrics,
		Logger:      zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	service, err := NewIdentityService(deps)
	if err != nil {
		t.Fatalf("NewIdentityService returned error: %v", err)
	}
	f.service = service
	return f
}

func (f *identityFixture) register(t *testing.T, email, username, password string) RegistrationResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: username,
		Password: password,
		Name:     "Test",
		Surname:  "User",
	})
	if err != nil {
		t.Fatalf("Register(%s) returned error: %v", email, err)
	}
	return result
}

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/infra/security"
	"github.com/arklim/medportal-api/internal/transport/http/handlers"
	"github.com/arklim/medportal-api/internal/transport/http/middleware"
	"github.com/arklim/medportal-api/internal/usecase"
)

const (
	goodToken = "good-token"
	callerID  = int64(7)
)

type fakeAuth struct {
	loginErr  error
	loggedOut []string
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (usecase.LoginResult, error) {
	if f.loginErr != nil {
		return usecase.LoginResult{}, f.loginErr
	}
	return usecase.LoginResult{AccessToken: "issued", TokenType: usecase.TokenTypeBearer, ExpiresIn: 3600e9}, nil
}

func (f *fakeAuth) ParseAccessToken(_ context.Context, raw string) (*security.AccessTokenClaims, error) {
	if raw != goodToken {
		return nil, usecase.ErrInvalidAccessToken
	}
	return &security.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1", Subject: fmt.Sprint(callerID)},
	}, nil
}

func (f *fakeAuth) Logout(_ context.Context, claims *security.AccessTokenClaims) error {
	f.loggedOut = append(f.loggedOut, claims.ID)
	return nil
}

type fakeIdentity struct {
	err error

	registered    usecase.RegisterInput
	verifiedToken string
	resetEmail    string
	newPassword   string
	resetToken    string
	updateTarget  int64
	updateFields  domain.ProfileFields
	deletedEmail  string
	profile       *domain.Profile
}

func (f *fakeIdentity) account() *domain.Account {
	return &domain.Account{ID: callerID, Email: "anna@example.com", Username: "anna", IsActive: true, PasswordHash: "secret"}
}

func (f *fakeIdentity) Register(_ context.Context, input usecase.RegisterInput) (usecase.RegistrationResult, error) {
	f.registered = input
	if f.err != nil {
		return usecase.RegistrationResult{}, f.err
	}
	return usecase.RegistrationResult{Account: *f.account(), Token: "raw"}, nil
}

func (f *fakeIdentity) Verify(_ context.Context, token string, _ int64) (*domain.Account, error) {
	f.verifiedToken = token
	if f.err != nil {
		return nil, f.err
	}
	account := f.account()
	account.IsVerified = true
	return account, nil
}

func (f *fakeIdentity) RequestPasswordReset(_ context.Context, email string) error {
	f.resetEmail = email
	return f.err
}

func (f *fakeIdentity) ResetPassword(_ context.Context, _ int64, newPassword string) error {
	f.newPassword = newPassword
	return f.err
}

func (f *fakeIdentity) ConfirmPasswordReset(_ context.Context, token, newPassword string) error {
	f.resetToken = token
	f.newPassword = newPassword
	return f.err
}

func (f *fakeIdentity) CheckResetToken(_ context.Context, token string) error {
	f.resetToken = token
	return f.err
}

func (f *fakeIdentity) UpdateProfile(_ context.Context, _, targetID int64, fields domain.ProfileFields) (*domain.Account, error) {
	f.updateTarget = targetID
	f.updateFields = fields
	if f.err != nil {
		return nil, f.err
	}
	account := f.account()
	account.Username = fields.Username
	return account, nil
}

func (f *fakeIdentity) Delete(_ context.Context, email string, _ int64) (*domain.Account, error) {
	f.deletedEmail = email
	if f.err != nil {
		return nil, f.err
	}
	return f.account(), nil
}

func (f *fakeIdentity) Profile(_ context.Context, _ int64) (*domain.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile != nil {
		return f.profile, nil
	}
	return &domain.Profile{Account: *f.account()}, nil
}

func newRouter(auth *fakeAuth, identity *fakeIdentity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.EnrichContext())

	requireAuth := middleware.RequireAuth(auth)
	handlers.NewAuthHandler(auth, identity).RegisterRoutes(r.Group("/auth"), handlers.AuthRouteOptions{RequireAuth: requireAuth})
	handlers.NewUsersHandler(identity).RegisterRoutes(r.Group("/users"), handlers.UsersRouteOptions{RequireAuth: requireAuth})
	return r
}

func do(r http.Handler, method, target, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRegisterCreatesAccount(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodPost, "/auth/register",
		`{"email":"anna@example.com","username":"anna","password":"pw","name":"Anna","surname":"Ivanova"}`, false)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "anna@example.com", identity.registered.Email)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.NotContains(t, w.Body.String(), "password")

	var resp handlers.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, callerID, resp.User.ID)
	assert.False(t, resp.User.IsVerified)
}

func TestRegisterErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"conflict", usecase.ErrConflict, http.StatusBadRequest},
		{"weak password", usecase.ErrPasswordPolicyViolation, http.StatusBadRequest},
		{"delivery", fmt.Errorf("%w: smtp down", usecase.ErrDeliveryFailed), http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(&fakeAuth{}, &fakeIdentity{err: tc.err})
			w := do(r, http.MethodPost, "/auth/register",
				`{"email":"anna@example.com","username":"anna","password":"pw","name":"Anna","surname":"Ivanova"}`, false)
			assert.Equal(t, tc.status, w.Code)
			assert.NotEmpty(t, decodeError(t, w).TraceID)
		})
	}

	r := newRouter(&fakeAuth{}, &fakeIdentity{})
	w := do(r, http.MethodPost, "/auth/register", `{"email":"not-an-email","username":"anna"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginResponses(t *testing.T) {
	r := newRouter(&fakeAuth{}, &fakeIdentity{})
	w := do(r, http.MethodPost, "/auth/login", `{"identifier":"anna","password":"pw"}`, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "issued", resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)

	for _, err := range []error{usecase.ErrInvalidCredentials, usecase.ErrAccountInactive} {
		r := newRouter(&fakeAuth{loginErr: err}, &fakeIdentity{})
		w := do(r, http.MethodPost, "/auth/login", `{"identifier":"anna","password":"pw"}`, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "LOGIN_BAD_CREDENTIALS", decodeError(t, w).Error)
	}

	r = newRouter(&fakeAuth{loginErr: fmt.Errorf("verify password: %w", security.ErrMalformedHash)}, &fakeIdentity{})
	w = do(r, http.MethodPost, "/auth/login", `{"identifier":"anna","password":"pw"}`, false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogoutRequiresToken(t *testing.T) {
	auth := &fakeAuth{}
	r := newRouter(auth, &fakeIdentity{})

	w := do(r, http.MethodPost, "/auth/logout", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/logout", "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"jti-1"}, auth.loggedOut)
}

func TestProtectedRoutesRejectAnonymousCallers(t *testing.T) {
	r := newRouter(&fakeAuth{}, &fakeIdentity{})

	routes := [][2]string{
		{http.MethodGet, "/users/me"},
		{http.MethodGet, "/users/verify/abc"},
		{http.MethodPut, "/users/update_user"},
		{http.MethodDelete, "/users/delete/anna@example.com"},
		{http.MethodPost, "/users/reset_password"},
	}
	for _, route := range routes {
		w := do(r, route[0], route[1], "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route[0], route[1])
	}
}

func TestVerifyResponses(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodGet, "/users/verify/tok-123", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-123", identity.verifiedToken)

	var resp handlers.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "User verified successfully.", resp.Message)
	assert.True(t, resp.User.IsVerified)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrAccountNotFound})
	w = do(r, http.MethodGet, "/users/verify/tok-123", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Verification token is invalid or user not found.", decodeError(t, w).Error)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrForbidden})
	w = do(r, http.MethodGet, "/users/verify/tok-123", "", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	identity := &fakeIdentity{profile: &domain.Profile{
		Account: domain.Account{ID: callerID, Email: "doc@example.com", Username: "doc", RoleID: 3},
		Role:    &domain.Role{ID: 3, Name: domain.RoleDoctor},
		Doctor:  &domain.DoctorInfo{DoctorID: 11, Specialization: "cardiology"},
	}}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodGet, "/users/me", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Role)
	require.NotNil(t, resp.DoctorInfo)
	assert.Equal(t, domain.RoleDoctor, resp.Role.Name)
	assert.Equal(t, "cardiology", resp.DoctorInfo.Specialization)
	assert.Empty(t, resp.Appointments)
}

func TestUpdateUserDefaultsTargetToCaller(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodPut, "/users/update_user", `{"username":"anna2","name":"Anna","surname":"Ivanova"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, callerID, identity.updateTarget)
	assert.Equal(t, "anna2", identity.updateFields.Username)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrForbidden})
	w = do(r, http.MethodPut, "/users/update_user", `{"id":99,"username":"x","name":"A","surname":"B"}`, true)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrConflict})
	w = do(r, http.MethodPut, "/users/update_user", `{"username":"taken","name":"A","surname":"B"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUser(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodDelete, "/users/delete/anna@example.com", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anna@example.com", identity.deletedEmail)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrAccountNotFound})
	w = do(r, http.MethodDelete, "/users/delete/ghost@example.com", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found.", decodeError(t, w).Error)
}

func TestForgotPasswordAcceptsQueryParameter(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodPost, "/users/forgot_password?email=anna@example.com", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anna@example.com", identity.resetEmail)
	assert.JSONEq(t, `{"message":"Email sent successfully."}`, w.Body.String())

	w = do(r, http.MethodPost, "/users/forgot_password", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrAccountNotFound})
	w = do(r, http.MethodPost, "/users/forgot_password?email=ghost@example.com", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetPasswordFlows(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodPost, "/users/reset_password?new_password=n3w-Secret", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "n3w-Secret", identity.newPassword)
	assert.JSONEq(t, `{"message":"Password reset successfully."}`, w.Body.String())

	w = do(r, http.MethodPost, "/auth/reset-password", `{"token":"abc","new_password":"n3w-Secret"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", identity.resetToken)

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrResetTokenInvalid})
	w = do(r, http.MethodPost, "/auth/reset-password", `{"token":"abc","new_password":"n3w-Secret"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "RESET_PASSWORD_BAD_TOKEN", decodeError(t, w).Error)
}

func TestCheckResetToken(t *testing.T) {
	identity := &fakeIdentity{}
	r := newRouter(&fakeAuth{}, identity)

	w := do(r, http.MethodGet, "/auth/reset-password?token=abc%2Bdef", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc+def", identity.resetToken)
	assert.JSONEq(t, `{"message":"Reset token is valid."}`, w.Body.String())

	r = newRouter(&fakeAuth{}, &fakeIdentity{err: usecase.ErrResetTokenInvalid})
	w = do(r, http.MethodGet, "/auth/reset-password?token=stale", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "RESET_PASSWORD_BAD_TOKEN", decodeError(t, w).Error)
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/readyz", h.Ready)

	w := do(r, http.MethodGet, "/readyz", "", false)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp handlers.ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "unavailable", resp.Checks["redis"])
}

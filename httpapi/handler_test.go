package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	identities map[string]goSession.Identity
	users      map[string]bool
	emails     map[string]bool
	err        error
	pingErr    error

	lastClientID  string
	lastRegister  goSession.RegisterInput
	lastLogout    [2]string
	logoutCalls   int
	lastRefresh   string
	lastLoginUser string
}

func newFakeService() *fakeService {
	return &fakeService{
		identities: map[string]goSession.Identity{
			"good-access": {SubjectID: 42, SubjectName: "alice", Role: "USER"},
		},
		users:  map[string]bool{"alice": true},
		emails: map[string]bool{"alice@example.com": true},
	}
}

func (f *fakeService) Authenticate(_ context.Context, credential string) (goSession.Identity, error) {
	if id, ok := f.identities[credential]; ok {
		return id, nil
	}
	return goSession.Identity{}, goSession.ErrUnauthenticated
}

func (f *fakeService) response() (goSession.AuthResponse, error) {
	if f.err != nil {
		return goSession.AuthResponse{}, f.err
	}
	return goSession.AuthResponse{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		ExpiresIn:    86400,
		SubjectID:    42,
		SubjectName:  "alice",
		Role:         "USER",
	}, nil
}

func (f *fakeService) Login(_ context.Context, username, _ string) (goSession.AuthResponse, error) {
	f.lastLoginUser = username
	return f.response()
}

func (f *fakeService) ClientLogin(_ context.Context, clientID, _ string) (goSession.AuthResponse, error) {
	f.lastClientID = clientID
	return f.response()
}

func (f *fakeService) Refresh(_ context.Context, token string) (goSession.AuthResponse, error) {
	f.lastRefresh = token
	return f.response()
}

func (f *fakeService) Register(_ context.Context, in goSession.RegisterInput) (goSession.AuthResponse, error) {
	f.lastRegister = in
	return f.response()
}

func (f *fakeService) Logout(_ context.Context, access, refresh string) error {
	f.logoutCalls++
	f.lastLogout = [2]string{access, refresh}
	return f.err
}

func (f *fakeService) UsernameExists(_ context.Context, username string) (bool, error) {
	return f.users[username], f.err
}

func (f *fakeService) EmailExists(_ context.Context, email string) (bool, error) {
	return f.emails[email], f.err
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body
}

func TestLoginSuccess(t *testing.T) {
	svc := newFakeService()
	h := NewHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access", body["access_token"])
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(86400), body["expires_in"])
	assert.Equal(t, float64(42), body["subject_id"])
	assert.Equal(t, "alice", svc.lastLoginUser)
}

func TestLoginValidation(t *testing.T) {
	h := NewHandler(newFakeService(), Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"username":"","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "username")

	rec = do(t, h, http.MethodPost, "/api/auth/login", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{goSession.ErrInvalidCredentials, http.StatusUnauthorized},
		{goSession.ErrInvalidClientCredentials, http.StatusUnauthorized},
		{goSession.ErrInvalidRefreshToken, http.StatusUnauthorized},
		{goSession.ErrUserNotFound, http.StatusUnauthorized},
		{goSession.ErrUsernameTaken, http.StatusConflict},
		{goSession.ErrEmailTaken, http.StatusConflict},
		{goSession.ErrPasswordMismatch, http.StatusBadRequest},
		{goSession.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: dial tcp", goSession.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		svc := newFakeService()
		svc.err = tc.err
		h := NewHandler(svc, Options{})

		rec := do(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"s3cret-pass"}`)
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
		decodeError(t, rec)
	}
}

func TestErrorBodiesDoNotLeak(t *testing.T) {
	svc := newFakeService()
	h := NewHandler(svc, Options{})

	svc.err = goSession.ErrUserNotFound
	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"s3cret-pass"}`)
	assert.Equal(t, goSession.ErrInvalidCredentials.Error(), decodeError(t, rec).Error)

	svc.err = errors.New("pq: password authentication failed for user postgres")
	rec = do(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"s3cret-pass"}`)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), decodeError(t, rec).Error)
}

func TestClientLoginPassesClientID(t *testing.T) {
	svc := newFakeService()
	h := NewHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/client/login", `{"client_id":"alice","client_secret":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", svc.lastClientID)

	rec = do(t, h, http.MethodPost, "/api/auth/client/login", `{"client_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	svc := newFakeService()
	h := NewHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"r1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", svc.lastRefresh)

	rec = do(t, h, http.MethodPost, "/api/auth/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister(t *testing.T) {
	svc := newFakeService()
	h := NewHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/register",
		`{"username":"bob","email":"bob@example.com","password":"s3cret-pass","confirm_password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, goSession.RegisterInput{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
	}, svc.lastRegister)

	rec = do(t, h, http.MethodPost, "/api/auth/register",
		`{"username":"bob","email":"not-an-email","password":"short","confirm_password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decodeError(t, rec).Error
	assert.Contains(t, msg, "email")
	assert.Contains(t, msg, "password")
}

func TestLogout(t *testing.T) {
	svc := newFakeService()
	h := NewHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/logout", `{"refresh_token":"r1"}`, "Authorization", "Bearer good-access")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"good-access", "r1"}, svc.lastLogout)

	rec = do(t, h, http.MethodPost, "/api/auth/logout", ``)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"", ""}, svc.lastLogout)
	assert.Equal(t, 2, svc.logoutCalls)
}

func TestAvailabilityChecks(t *testing.T) {
	h := NewHandler(newFakeService(), Options{})

	rec := do(t, h, http.MethodGet, "/api/auth/check-username?username=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body ExistsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Exists)

	rec = do(t, h, http.MethodGet, "/api/auth/check-email?email=new@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Exists)

	rec = do(t, h, http.MethodGet, "/api/auth/check-email", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeRequiresIdentity(t *testing.T) {
	h := NewHandler(newFakeService(), Options{})

	rec := do(t, h, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/me", "", "Authorization", "Bearer unknown")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/me", "", "Authorization", "Bearer good-access")
	require.Equal(t, http.StatusOK, rec.Code)
	var id goSession.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
	assert.Equal(t, goSession.Identity{SubjectID: 42, SubjectName: "alice", Role: "USER"}, id)
}

func TestHealthAndMetrics(t *testing.T) {
	svc := newFakeService()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("gosession_up 1\n"))
	})
	h := NewHandler(svc, Options{Metrics: metrics})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.pingErr = goSession.ErrStoreUnavailable
	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gosession_up 1\n", rec.Body.String())

	rec = do(t, NewHandler(svc, Options{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(newFakeService(), Options{})

	rec := do(t, h, http.MethodGet, "/api/auth/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

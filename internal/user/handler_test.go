// AngelaMos | 2026
// handler_test.go

package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodkaclient/keyserver/internal/core"
	"github.com/vodkaclient/keyserver/internal/middleware"
	"github.com/vodkaclient/keyserver/internal/session"
)

type stubAccounts struct {
	registerUser *User
	registerErr  error
	loginUser    *User
	loginErr     error
	getUser      *User
	getErr       error
}

func (s *stubAccounts) Register(
	ctx context.Context,
	username, password string,
) (*User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.registerUser, nil
}

func (s *stubAccounts) Login(
	ctx context.Context,
	username, password string,
) (*User, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.loginUser, nil
}

func (s *stubAccounts) GetByID(ctx context.Context, uid int64) (*User, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getUser, nil
}

type stubSessions struct {
	created     []int64
	destroyed   []string
	createErr   error
	cookieSet   bool
	cookieClear bool
}

func (s *stubSessions) Create(
	ctx context.Context,
	userID int64,
	username string,
) (*session.Session, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, userID)
	return &session.Session{
		ID:       "test-session-id",
		UserID:   userID,
		Username: username,
	}, nil
}

func (s *stubSessions) Destroy(ctx context.Context, id string) error {
	s.destroyed = append(s.destroyed, id)
	return nil
}

func (s *stubSessions) CookieName() string { return "session_id" }

func (s *stubSessions) SetCookie(w http.ResponseWriter, sess *session.Session) {
	s.cookieSet = true
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: sess.ID})
}

func (s *stubSessions) ClearCookie(w http.ResponseWriter) {
	s.cookieClear = true
}

func newTestRouter(accounts AccountService, sessions SessionManager) chi.Router {
	r := chi.NewRouter()
	NewHandler(accounts, sessions).RegisterRoutes(r)
	return r
}

func TestRegisterSuccess(t *testing.T) {
	sessions := &stubSessions{}
	accounts := &stubAccounts{
		registerUser: &User{UID: 1, Username: "alice"},
	}
	router := newTestRouter(accounts, sessions)

	req := httptest.NewRequest(
		http.MethodPost,
		"/register",
		strings.NewReader(`{"username":"alice","password":"secret123"}`),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sessions.cookieSet)
	assert.Equal(t, []int64{1}, sessions.created)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.UID)
	assert.Equal(t, "alice", resp.Username)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","password":"secret123"}`},
		{"short password", `{"username":"alice","password":"12345"}`},
		{"missing fields", `{}`},
		{"malformed json", `{"username":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubAccounts{}, &stubSessions{})

			req := httptest.NewRequest(
				http.MethodPost, "/register", strings.NewReader(tt.body),
			)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	accounts := &stubAccounts{registerErr: ErrUsernameTaken}
	router := newTestRouter(accounts, &stubSessions{})

	req := httptest.NewRequest(
		http.MethodPost,
		"/register",
		strings.NewReader(`{"username":"alice","password":"secret123"}`),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp core.FailureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user already exists", resp.Message)
}

func TestLoginInvalidCredentials(t *testing.T) {
	accounts := &stubAccounts{loginErr: ErrInvalidCredentials}
	router := newTestRouter(accounts, &stubSessions{})

	req := httptest.NewRequest(
		http.MethodPost,
		"/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp core.FailureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid login or password", resp.Message)
}

func TestCheckAuthAnonymous(t *testing.T) {
	router := newTestRouter(&stubAccounts{}, &stubSessions{})

	req := httptest.NewRequest(http.MethodGet, "/check-auth", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Authenticated)
}

func TestCheckAuthAuthenticated(t *testing.T) {
	subType := "lifetime"
	accounts := &stubAccounts{
		getUser: &User{
			UID:              4,
			Username:         "alice",
			SubscriptionType: &subType,
			CreatedAt:        time.Now(),
		},
	}
	router := newTestRouter(accounts, &stubSessions{})

	req := httptest.NewRequest(http.MethodGet, "/check-auth", nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, int64(4))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Authenticated)
	assert.Equal(t, int64(4), resp.UID)
	assert.True(t, resp.SubscriptionActive)
}

func TestCheckAuthStaleSession(t *testing.T) {
	sessions := &stubSessions{}
	accounts := &stubAccounts{getErr: core.ErrNotFound}
	router := newTestRouter(accounts, sessions)

	req := httptest.NewRequest(http.MethodGet, "/check-auth", nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, int64(42))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sessions.cookieClear)

	var resp CheckAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Authenticated)
}

func TestLogout(t *testing.T) {
	sessions := &stubSessions{}
	router := newTestRouter(&stubAccounts{}, sessions)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	ctx := context.WithValue(
		req.Context(), middleware.SessionIDKey, "sess-123",
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sess-123"}, sessions.destroyed)
	assert.True(t, sessions.cookieClear)
}

func TestLogoutWithoutSession(t *testing.T) {
	sessions := &stubSessions{}
	router := newTestRouter(&stubAccounts{}, sessions)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sessions.destroyed)
	assert.True(t, sessions.cookieClear)
}

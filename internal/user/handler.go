// AngelaMos | 2026
// handler.go

package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vodkaclient/keyserver/internal/core"
	"github.com/vodkaclient/keyserver/internal/middleware"
	"github.com/vodkaclient/keyserver/internal/session"
	"github.com/vodkaclient/keyserver/internal/subscription"
)

type AccountService interface {
	Register(ctx context.Context, username, password string) (*User, error)
	Login(ctx context.Context, username, password string) (*User, error)
	GetByID(ctx context.Context, uid int64) (*User, error)
}

type SessionManager interface {
	Create(
		ctx context.Context,
		userID int64,
		username string,
	) (*session.Session, error)
	Destroy(ctx context.Context, id string) error
	CookieName() string
	SetCookie(w http.ResponseWriter, sess *session.Session)
	ClearCookie(w http.ResponseWriter)
}

type Handler struct {
	service   AccountService
	sessions  SessionManager
	validator *validator.Validate
}

func NewHandler(service AccountService, sessions SessionManager) *Handler {
	return &Handler{
		service:   service,
		sessions:  sessions,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/check-auth", h.CheckAuth)
	r.Post("/logout", h.Logout)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			core.BadRequest(w, "user already exists")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	h.issueSession(w, r, account, "registration successful")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// Web login reports bad credentials as a plain 400; only the
			// launcher path uses 401.
			core.BadRequest(w, "invalid login or password")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	h.issueSession(w, r, account, "login successful")
}

// CheckAuth never fails with a 4xx: an anonymous caller simply gets
// authenticated false so the frontend can branch without error handling.
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	if uid == 0 {
		core.OK(w, CheckAuthResponse{Authenticated: false})
		return
	}

	account, err := h.service.GetByID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Session outlived the account, typically after an admin
			// wipe. Drop the cookie so the client stops presenting it.
			h.sessions.ClearCookie(w)
			core.OK(w, CheckAuthResponse{Authenticated: false})
			return
		}
		core.InternalServerError(w, err)
		return
	}

	createdAt := account.CreatedAt
	core.OK(w, CheckAuthResponse{
		Authenticated:       true,
		UID:                 account.UID,
		Username:            account.Username,
		CreatedAt:           &createdAt,
		SubscriptionType:    account.SubscriptionType,
		SubscriptionExpires: account.SubscriptionExpires,
		SubscriptionActive: subscription.IsActive(
			account.SubscriptionType,
			account.SubscriptionExpires,
			time.Now(),
		),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetSessionID(r.Context())
	if id == "" {
		id = session.FromRequest(r, h.sessions.CookieName())
	}

	if id != "" {
		if err := h.sessions.Destroy(r.Context(), id); err != nil {
			core.InternalServerError(w, err)
			return
		}
	}

	h.sessions.ClearCookie(w)
	core.OK(w, LogoutResponse{Success: true, Message: "logged out"})
}

func (h *Handler) issueSession(
	w http.ResponseWriter,
	r *http.Request,
	account *User,
	message string,
) {
	sess, err := h.sessions.Create(r.Context(), account.UID, account.Username)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	h.sessions.SetCookie(w, sess)
	core.OK(w, AuthResponse{
		Success:  true,
		Message:  message,
		UID:      account.UID,
		Username: account.Username,
	})
}

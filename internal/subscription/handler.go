// AngelaMos | 2026
// handler.go

package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vodkaclient/keyserver/internal/core"
	"github.com/vodkaclient/keyserver/internal/middleware"
)

type KeyService interface {
	Activate(
		ctx context.Context,
		uid int64,
		keyCode string,
	) (*Key, time.Time, error)
	CheckSubscription(
		ctx context.Context,
		username string,
		password string,
		hwid string,
	) (*Account, error)
	CheckByUID(ctx context.Context, uid int64) (*Account, error)
}

type Handler struct {
	service   KeyService
	validator *validator.Validate
}

func NewHandler(service KeyService) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	requireSession func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/activate-key", h.ActivateKey)
	})

	r.Route("/launcher", func(r chi.Router) {
		r.Post("/check-subscription", h.CheckSubscription)
		r.Get("/check-uid/{uid}", h.CheckUID)
	})
}

func (h *Handler) ActivateKey(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())

	var req ActivateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	key, expires, err := h.service.Activate(r.Context(), uid, req.KeyCode)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound),
			errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "invalid key")
		case errors.Is(err, ErrKeyAlreadyUsed):
			core.BadRequest(w, "key already used")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ActivationResponse{
		Success:          true,
		Message:          "key activated",
		SubscriptionType: key.SubscriptionType,
		Expires:          &expires,
	})
}

func (h *Handler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	var req LauncherCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.CheckSubscription(
		r.Context(),
		req.Username,
		req.Password,
		req.HWID,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			launcherFail(w, http.StatusBadRequest, "hwid is required")
		case errors.Is(err, ErrInvalidCredentials):
			launcherFail(
				w, http.StatusUnauthorized, "invalid login or password",
			)
		case errors.Is(err, ErrHWIDMismatch):
			// No subscription state leaks past a hardware mismatch.
			launcherFail(w, http.StatusForbidden, "hwid mismatch")
		default:
			slog.Error("check subscription", "error", err)
			launcherFail(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	view := launcherView(account, true)
	if view.HasSubscription {
		view.Message = "Подписка активна"
	} else {
		view.Message = "Подписка отсутствует или истекла"
	}

	core.OK(w, view)
}

func (h *Handler) CheckUID(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil || uid <= 0 {
		core.BadRequest(w, "invalid uid")
		return
	}

	account, err := h.service.CheckByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			launcherFail(w, http.StatusNotFound, "user not found")
			return
		}
		slog.Error("check uid", "error", err)
		launcherFail(w, http.StatusInternalServerError, "server error")
		return
	}

	core.OK(w, launcherView(account, false))
}

func launcherFail(w http.ResponseWriter, status int, message string) {
	core.WriteJSON(w, status, LauncherFailure{
		Success:         false,
		Message:         message,
		HasSubscription: false,
	})
}

func launcherView(account *Account, includeHWID bool) LauncherView {
	view := LauncherView{
		Success: true,
		User: &LauncherUser{
			UID:       account.UID,
			Username:  account.Username,
			CreatedAt: account.CreatedAt,
		},
	}

	active := IsActive(
		account.SubscriptionType,
		account.SubscriptionExpires,
		time.Now(),
	)
	view.HasSubscription = active

	if account.SubscriptionType != nil {
		view.Subscription = &LauncherSubscription{
			Type:    *account.SubscriptionType,
			Expires: account.SubscriptionExpires,
			Active:  active,
		}
	}

	if includeHWID {
		view.HWID = account.HWID
	}

	return view
}

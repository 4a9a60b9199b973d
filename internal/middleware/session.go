// AngelaMos | 2026
// session.go

package middleware

import (
	"context"
	"net/http"

	"github.com/vodkaclient/keyserver/internal/core"
	"github.com/vodkaclient/keyserver/internal/session"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UsernameKey  contextKey = "username"
	SessionIDKey contextKey = "session_id"
)

type SessionReader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	CookieName() string
}

// Sessions resolves the session cookie and attaches the identity to the
// request context. It never rejects: handlers that need authentication
// stack RequireSession on top or check GetUserID themselves.
func Sessions(store SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := session.FromRequest(r, store.CookieName())
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := store.Get(r.Context(), id)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, sess.UserID)
			ctx = context.WithValue(ctx, UsernameKey, sess.Username)
			ctx = context.WithValue(ctx, SessionIDKey, sess.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == 0 {
			core.Unauthorized(w, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserID(ctx context.Context) int64 {
	if id, ok := ctx.Value(UserIDKey).(int64); ok {
		return id
	}
	return 0
}

func GetUsername(ctx context.Context) string {
	if name, ok := ctx.Value(UsernameKey).(string); ok {
		return name
	}
	return ""
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != 0
}

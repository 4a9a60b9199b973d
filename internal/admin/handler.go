// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/vodkaclient/keyserver/internal/core"
	"github.com/vodkaclient/keyserver/internal/subscription"
	"github.com/vodkaclient/keyserver/internal/user"
)

type UserDirectory interface {
	List(ctx context.Context) ([]user.User, error)
	Delete(ctx context.Context, uid int64) error
	ResetHWID(ctx context.Context, uid int64) error
}

type KeyIssuer interface {
	GenerateKey(
		ctx context.Context,
		subscriptionType string,
		durationDays int,
	) (*subscription.Key, error)
	ListKeys(ctx context.Context) ([]subscription.Key, error)
}

type SessionFlusher interface {
	DestroyAll(ctx context.Context) error
}

type Handler struct {
	users       UserDirectory
	keys        KeyIssuer
	maintenance Repository
	sessions    SessionFlusher
	resetSecret string
	validator   *validator.Validate

	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
}

type HandlerConfig struct {
	Users       UserDirectory
	Keys        KeyIssuer
	Maintenance Repository
	Sessions    SessionFlusher
	ResetSecret string

	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		users:       cfg.Users,
		keys:        cfg.Keys,
		maintenance: cfg.Maintenance,
		sessions:    cfg.Sessions,
		resetSecret: cfg.ResetSecret,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		dbStats:     cfg.DBStats,
		redisStats:  cfg.RedisStats,
		redisPing:   cfg.RedisPing,
		dbPing:      cfg.DBPing,
	}
}

// RequireToken gates the admin surface on a static X-Admin-Token header.
// An empty configured token disables the check; main logs a warning when
// that happens.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				presented := r.Header.Get("X-Admin-Token")
				if !core.ConstantTimeEquals(presented, token) {
					core.Forbidden(w, "invalid admin token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	guard func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(guard)

		r.Get("/users", h.ListUsers)
		r.Get("/keys", h.ListKeys)
		r.Post("/generate-key", h.GenerateKey)
		r.Post("/delete-user", h.DeleteUser)
		r.Post("/reset-hwid", h.ResetHWID)
		r.Post("/reset-database", h.ResetDatabase)
		r.Post("/reset-uid-sequence", h.ResetUIDSequence)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, UserListResponse{
		Success: true,
		Users:   user.ToAdminViewList(users),
	})
}

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, KeyListResponse{
		Success: true,
		Keys:    subscription.ToAdminViewList(keys),
	})
}

func (h *Handler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req subscription.GenerateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	key, err := h.keys.GenerateKey(
		r.Context(),
		req.SubscriptionType,
		req.DurationDays,
	)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "duration_days must be positive for timed keys")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, GeneratedKeyResponse{
		Success:          true,
		Key:              key.KeyCode,
		SubscriptionType: key.SubscriptionType,
		DurationDays:     key.DurationDays,
	})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req DeleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.users.Delete(r.Context(), req.UID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user not found")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ActionResponse{Success: true, Message: "user deleted"})
}

func (h *Handler) ResetHWID(w http.ResponseWriter, r *http.Request) {
	var req ResetHWIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.users.ResetHWID(r.Context(), req.UID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user not found")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ActionResponse{Success: true, Message: "hwid reset"})
}

// ResetDatabase wipes every account and key. The confirmation secret in
// the body is checked in constant time on top of the admin token guard.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	var req ResetDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if !core.ConstantTimeEquals(req.Confirm, h.resetSecret) {
		core.Forbidden(w, "invalid confirmation secret")
		return
	}

	if err := h.maintenance.ResetAll(r.Context()); err != nil {
		core.InternalServerError(w, err)
		return
	}

	// Live sessions reference wiped accounts; flush them so stale
	// cookies cannot linger. Failure here is logged, not fatal, since
	// check-auth already tolerates orphaned sessions.
	if h.sessions != nil {
		if err := h.sessions.DestroyAll(r.Context()); err != nil {
			slog.Error("flush sessions after reset", "error", err)
		}
	}

	core.OK(w, ActionResponse{Success: true, Message: "database reset"})
}

func (h *Handler) ResetUIDSequence(w http.ResponseWriter, r *http.Request) {
	if err := h.maintenance.ResetUIDSequence(r.Context()); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ActionResponse{Success: true, Message: "uid sequence reset"})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatsResponse{
		Success: true,
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     memStats.Alloc,
			MemSys:       memStats.Sys,
			NumGC:        memStats.NumGC,
		},
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, DatabaseStatsResponse{Success: true, Stats: h.getDBStats()})
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, RedisStatsResponse{Success: true, Stats: h.getRedisStats()})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	core.OK(w, RuntimeStatsResponse{
		Success: true,
		Stats: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     memStats.Alloc,
			MemSys:       memStats.Sys,
			NumGC:        memStats.NumGC,
		},
	})
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type SystemStatsResponse struct {
	Success  bool           `json:"success"`
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatsResponse struct {
	Success bool         `json:"success"`
	Stats   *DBPoolStats `json:"stats"`
}

type RedisStatsResponse struct {
	Success bool            `json:"success"`
	Stats   *RedisPoolStats `json:"stats"`
}

type RuntimeStatsResponse struct {
	Success bool         `json:"success"`
	Stats   RuntimeStats `json:"stats"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

// AngelaMos | 2026
// handler.go

// Package health exposes the liveness and readiness probes. Readiness
// reflects the two dependencies every request path needs: the Postgres
// account/key store and the Redis session backend.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 5 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	postgres Pinger
	redis    Pinger
	ready    atomic.Bool
	shutdown atomic.Bool
}

func NewHandler(postgres, redis Pinger) *Handler {
	h := &Handler{
		postgres: postgres,
		redis:    redis,
	}
	h.ready.Store(true)
	return h
}

// Probes sit outside /api so infrastructure can reach them without the
// API middleware stack.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "shutting_down",
		})
		return
	}

	h.writeStatus(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "shutting_down",
		})
		return
	}

	if !h.ready.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "not_ready",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks := h.checkDependencies(ctx)

	status := "ok"
	statusCode := http.StatusOK
	for _, check := range checks {
		if !check.Healthy {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	h.writeStatus(w, statusCode, ReadinessResponse{
		Status: status,
		Checks: checks,
	})
}

// checkDependencies pings Postgres and Redis concurrently so a slow
// database cannot hide a dead session store behind the probe timeout.
func (h *Handler) checkDependencies(ctx context.Context) []DependencyStatus {
	var wg sync.WaitGroup
	checks := make([]DependencyStatus, 2)

	wg.Add(2)

	go func() {
		defer wg.Done()
		checks[0] = probe(ctx, "postgres", h.postgres)
	}()

	go func() {
		defer wg.Done()
		checks[1] = probe(ctx, "redis", h.redis)
	}()

	wg.Wait()
	return checks
}

func probe(ctx context.Context, name string, dep Pinger) DependencyStatus {
	check := DependencyStatus{
		Name:    name,
		Healthy: true,
	}

	if dep == nil {
		check.Healthy = false
		check.Message = "not configured"
		return check
	}

	start := time.Now()
	err := dep.Ping(ctx)
	check.Latency = time.Since(start).String()

	if err != nil {
		check.Healthy = false
		check.Message = "ping failed"
	}

	return check
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetShutdown flips both probes to 503 so load balancers drain the
// instance ahead of the listener closing.
func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string             `json:"status"`
	Checks []DependencyStatus `json:"checks"`
}

type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

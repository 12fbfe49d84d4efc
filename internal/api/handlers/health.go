package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a HealthHandler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Root answers the liveness check inherited by existing clients.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Backend is running."))
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			log.Printf("health: database ping failed: %v", err)
			api.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"livemap/internal/live"
	"livemap/internal/shared/database"
	"livemap/internal/shared/redis"
	"livemap/internal/shared/response"
)

const pingTimeout = 2 * time.Second

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Clients   int    `json:"clients"`
}

// HealthHandler reports the optional stores and the live connection count.
// A nil db or cache is reported as disabled.
type HealthHandler struct {
	db  *database.DB
	rdb *redis.Client
	hub *live.Hub
}

func NewHealthHandler(db *database.DB, rdb *redis.Client, hub *live.Hub) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, hub: hub}
}

type pinger interface {
	Healthy(ctx context.Context) error
}

func check(ctx context.Context, logger *slog.Logger, name string, enabled bool, p pinger) string {
	if !enabled {
		return "disabled"
	}
	if err := p.Healthy(ctx); err != nil {
		logger.Warn("Dependency ping failed", "dependency", name, "error", err)
		return "disconnected"
	}
	return "connected"
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  check(ctx, logger, "database", h.db != nil, h.db),
		Redis:     check(ctx, logger, "redis", h.rdb != nil, h.rdb),
	}
	if h.hub != nil {
		resp.Clients = h.hub.Clients()
	}
	if resp.Database == "disconnected" || resp.Redis == "disconnected" {
		resp.Status = "degraded"
	}

	response.Success(w, http.StatusOK, resp)
}

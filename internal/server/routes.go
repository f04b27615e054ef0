package server

import (
	"log/slog"
	"net/http"

	"livemap/internal/live"
	"livemap/internal/middleware"
	serverHandlers "livemap/internal/server/handlers"
	"livemap/internal/session"
	sessionHandlers "livemap/internal/session/handlers"
	"livemap/internal/shared/database"
	"livemap/internal/shared/redis"
)

type Routes struct {
	db      *database.DB
	rdb     *redis.Client
	session *session.Session
	hub     *live.Hub
	auth    *middleware.JWTAuth
	logger  *slog.Logger
}

func NewRoutes(db *database.DB, rdb *redis.Client, s *session.Session, hub *live.Hub, auth *middleware.JWTAuth, logger *slog.Logger) *Routes {
	return &Routes{
		db:      db,
		rdb:     rdb,
		session: s,
		hub:     hub,
		auth:    auth,
		logger:  logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.rdb, r.hub)
	h := sessionHandlers.NewSessionHandler(r.session)

	// Reads are public; writes need an operator token when auth is enabled.
	guard := func(fn http.HandlerFunc) http.Handler {
		return r.auth.Mutating(fn)
	}

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.HandleFunc("/api/entities", h.Entities)
	mux.HandleFunc("/api/stats", h.Stats)
	mux.HandleFunc("/api/sync", h.Sync)
	mux.HandleFunc("/api/history/spawnpoints/{id}", h.PointHistory)
	mux.HandleFunc("/api/history/area", h.AreaHistory)

	// Read/write endpoints
	mux.Handle("/api/viewport", guard(h.Viewport))
	mux.Handle("/api/preferences", guard(h.Preferences))
	mux.Handle("/api/location", guard(h.Location))
	mux.Handle("/api/search", guard(h.Search))
	mux.Handle("/api/select", guard(h.Select))
	mux.Handle("/api/notices", guard(h.Notices))
	mux.Handle("/api/notices/{id}", guard(h.Notices))
	mux.Handle("/api/creatures/{id}/scout", guard(h.Scout))
	mux.Handle("/api/creatures/{id}/hide", guard(h.Hide))

	// Live updates
	mux.Handle("/ws", r.auth.Middleware(r.hub))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/entities", "/api/stats", "/api/sync", "/api/history/spawnpoints/{id}", "/api/history/area"},
		"guarded_endpoints", []string{"/api/viewport", "/api/preferences", "/api/location", "/api/search", "/api/select", "/api/notices", "/api/creatures/{id}/scout", "/api/creatures/{id}/hide"},
		"live_endpoints", []string{"/ws"},
		"auth_enabled", r.auth.Enabled(),
	)

	return mux
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livemap/internal/alert"
	"livemap/internal/geo"
	"livemap/internal/live"
	"livemap/internal/middleware"
	"livemap/internal/prefs"
	"livemap/internal/render"
	"livemap/internal/server"
	"livemap/internal/session"
	"livemap/internal/shared/config"
	"livemap/internal/shared/database"
	"livemap/internal/shared/logger"
	"livemap/internal/shared/redis"
	"livemap/internal/upstream"
	"livemap/migrations"
)

// initialViewRadius is the half-width in meters of the map shown before
// the browser reports its own viewport.
const initialViewRadius = 1000

func main() {
	issue := flag.String("issue-token", "", "print an operator token for the given name and exit")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	logger.Init()
	cfg := config.GlobalConfig

	auth := middleware.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if *issue != "" {
		token, err := auth.IssueToken(*issue, *ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, auth); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, auth *middleware.JWTAuth) error {
	logger := slog.With("component", "main")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	var prefStore prefs.Store = prefs.NewMemoryStore()
	if db != nil {
		defer db.Close()
		var schema fs.FS = migrations.FS
		if cfg.Database.MigrationsPath != "" {
			schema = os.DirFS(cfg.Database.MigrationsPath)
		}
		if err := db.RunMigrations(ctx, schema); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		prefStore = prefs.NewPostgresStore(db)
	}

	rdb, err := redis.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	var scoutCache upstream.ScoutCache = upstream.NewMemoryCache()
	if rdb != nil {
		defer rdb.Close()
		scoutCache = upstream.NewRedisCache(rdb.Client, rdb.Namespace)
	}

	httpClient := upstream.NewHTTPClient(ctx, upstream.AuthConfig{
		ClientID:     cfg.Upstream.OAuthClientID,
		ClientSecret: cfg.Upstream.OAuthClientSecret,
		TokenURL:     cfg.Upstream.OAuthTokenURL,
		Scopes:       cfg.Upstream.OAuthScopes,
		SharedSecret: cfg.Upstream.SharedSecret,
		Subject:      cfg.Upstream.Subject,
	})
	backend, err := upstream.NewClient(upstream.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		Timeout:       cfg.Upstream.Timeout,
		ScoutCooldown: cfg.Upstream.ScoutCooldown,
		HTTPClient:    httpClient,
		Cache:         scoutCache,
	})
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid SYNC_TIME_ZONE: %w", err)
	}
	templates := alert.DefaultTemplates()
	templates.Location = loc
	if cfg.Sync.QualityTitle != "" {
		templates.QualityTitle = cfg.Sync.QualityTitle
	}
	if cfg.Sync.Title != "" {
		templates.Title = cfg.Sync.Title
	}
	if cfg.Sync.Body != "" {
		templates.Body = cfg.Sync.Body
	}

	var sess *session.Session
	hub := live.NewHub(live.Options{
		AllowedOrigins: []string{cfg.Frontend.URL, cfg.Server.URL},
		OnMessage: func(clientID string, msg live.Inbound) {
			if msg.Type != "dismiss" || sess == nil {
				return
			}
			if err := sess.DismissNotice(ctx, msg.ID); err != nil {
				logger.Debug("Dismiss ignored", "client_id", clientID, "notice_id", msg.ID, "error", err)
			}
		},
	})
	defer hub.Close()

	start := geo.LatLng{Lat: cfg.Sync.StartLat, Lng: cfg.Sync.StartLng}
	sess, err = session.New(ctx, session.Options{
		Backend:        backend,
		Prefs:          prefStore,
		Surface:        render.NewHeadless(geo.CircleBounds(start, initialViewRadius), cfg.Sync.StartZoom),
		Publisher:      hub,
		Notifiers:      []alert.Notifier{hub, alert.NewLogNotifier()},
		Templates:      templates,
		Location:       start,
		PollInterval:   cfg.Sync.PollInterval,
		StatusInterval: cfg.Sync.StatusInterval,
		Epsilon:        cfg.Sync.Epsilon,
	})
	if err != nil {
		return err
	}
	sess.Start(ctx)
	defer sess.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		Enabled:           cfg.RateLimit.Enabled,
		TrustProxy:        cfg.RateLimit.TrustProxy,
	})
	defer rateLimiter.Close()

	routes := server.NewRoutes(db, rdb, sess, hub, auth, logger)
	cors := middleware.NewCORS(cfg.Frontend)
	handler := cors.Middleware(rateLimiter.Middleware(routes.Setup()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Live map server starting",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"upstream", cfg.Upstream.BaseURL,
			"database", db != nil,
			"redis", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

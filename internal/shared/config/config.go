package config

import (
	"fmt"
	"time"

	"livemap/internal/shared/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Sync      SyncConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Frontend  FrontendConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
}

type RedisConfig struct {
	Enabled   bool
	URL       string
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
}

type ServerConfig struct {
	Port         string
	URL          string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// UpstreamConfig points at the map backend and its credentials.
type UpstreamConfig struct {
	BaseURL       string
	Timeout       time.Duration
	ScoutCooldown time.Duration

	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthScopes       []string

	SharedSecret string
	Subject      string
}

// SyncConfig drives the session loops and the initial map state.
type SyncConfig struct {
	PollInterval   time.Duration
	StatusInterval time.Duration
	Epsilon        float64
	StartLat       float64
	StartLng       float64
	StartZoom      int
	TimeZone       string

	QualityTitle string
	Title        string
	Body         string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MigrationsPath overrides the embedded schema with a directory.
	MigrationsPath string
}

// AuthConfig protects the mutating dashboard endpoints. An empty secret
// leaves them open.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	GlobalConfig = config
	return nil
}

func load() (*Config, error) {
	config := &Config{
		Server:    loadServerConfig(),
		Upstream:  loadUpstreamConfig(),
		Sync:      loadSyncConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Auth:      loadAuthConfig(),
		Frontend:  loadFrontendConfig(),
		Logging:   loadLoggingConfig(),
		RateLimit: loadRateLimitConfig(),
	}

	return config, nil
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:   utils.GetEnv("REDIS_ENABLED", "false") == "true",
		URL:       utils.GetEnv("REDIS_URL", ""),
		Host:      utils.GetEnv("REDIS_HOST", "localhost"),
		Port:      utils.GetEnv("REDIS_PORT", "6379"),
		Password:  utils.GetEnv("REDIS_PASSWORD", ""),
		DB:        utils.GetEnvInt("REDIS_DB", 0),
		KeyPrefix: utils.GetEnv("REDIS_KEY_PREFIX", "livemap:"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:         utils.GetEnv("SERVER_PORT", "8080"),
		URL:          utils.GetEnv("SERVER_URL", "http://localhost:8080"),
		Environment:  utils.GetEnv("ENVIRONMENT", "development"),
		ReadTimeout:  utils.GetEnvSeconds("SERVER_READ_TIMEOUT_SECONDS", 15*time.Second),
		WriteTimeout: utils.GetEnvSeconds("SERVER_WRITE_TIMEOUT_SECONDS", 15*time.Second),
		IdleTimeout:  utils.GetEnvSeconds("SERVER_IDLE_TIMEOUT_SECONDS", 60*time.Second),
	}
}

func loadUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		BaseURL:           utils.GetEnv("UPSTREAM_URL", "http://localhost:5000"),
		Timeout:           utils.GetEnvSeconds("UPSTREAM_TIMEOUT_SECONDS", 10*time.Second),
		ScoutCooldown:     utils.GetEnvSeconds("UPSTREAM_SCOUT_COOLDOWN_SECONDS", 10*time.Second),
		OAuthClientID:     utils.GetEnv("UPSTREAM_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: utils.GetEnv("UPSTREAM_OAUTH_CLIENT_SECRET", ""),
		OAuthTokenURL:     utils.GetEnv("UPSTREAM_OAUTH_TOKEN_URL", ""),
		OAuthScopes:       utils.GetEnvList("UPSTREAM_OAUTH_SCOPES", nil),
		SharedSecret:      utils.GetEnv("UPSTREAM_SHARED_SECRET", ""),
		Subject:           utils.GetEnv("UPSTREAM_SUBJECT", "livemap"),
	}
}

func loadSyncConfig() SyncConfig {
	return SyncConfig{
		PollInterval:   utils.GetEnvSeconds("SYNC_POLL_INTERVAL_SECONDS", 5*time.Second),
		StatusInterval: utils.GetEnvSeconds("SYNC_STATUS_INTERVAL_SECONDS", 5*time.Second),
		Epsilon:        utils.GetEnvFloat("SYNC_BOUNDS_EPSILON", 0.0005),
		StartLat:       utils.GetEnvFloat("SYNC_START_LAT", 40.7829),
		StartLng:       utils.GetEnvFloat("SYNC_START_LNG", -73.9654),
		StartZoom:      utils.GetEnvInt("SYNC_START_ZOOM", 16),
		TimeZone:       utils.GetEnv("SYNC_TIME_ZONE", "Local"),
		QualityTitle:   utils.GetEnv("NOTIFY_QUALITY_TITLE", ""),
		Title:          utils.GetEnv("NOTIFY_TITLE", ""),
		Body:           utils.GetEnv("NOTIFY_BODY", ""),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         utils.GetEnv("DB_ENABLED", "false") == "true",
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "livemap"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    utils.GetEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    utils.GetEnvInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: time.Duration(utils.GetEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		MigrationsPath:  utils.GetEnv("DB_MIGRATIONS_PATH", ""),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: utils.GetEnv("JWT_SECRET", ""),
		Issuer:    utils.GetEnv("JWT_ISSUER", "livemap"),
	}
}

func loadFrontendConfig() FrontendConfig {
	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSDebug: utils.GetEnv("CORS_DEBUG", "") == "true",
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "debug"),
		Format:     utils.GetEnv("LOG_FORMAT", "text"),
		JSONFormat: environment == "production",
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true",
		RequestsPerSecond: utils.GetEnvFloat("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		BurstSize:         utils.GetEnvInt("RATE_LIMIT_BURST_SIZE", 20),
		TrustProxy:        utils.GetEnvBool("RATE_LIMIT_TRUST_PROXY", false),
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Sync.PollInterval <= 0 || c.Sync.StatusInterval <= 0 {
		return fmt.Errorf("SYNC_POLL_INTERVAL_SECONDS and SYNC_STATUS_INTERVAL_SECONDS must be positive")
	}

	if c.Sync.StartLat < -90 || c.Sync.StartLat > 90 || c.Sync.StartLng < -180 || c.Sync.StartLng > 180 {
		return fmt.Errorf("SYNC_START_LAT/SYNC_START_LNG out of range")
	}

	if c.Database.Enabled && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("DB_HOST and DB_NAME are required when DB_ENABLED is true")
	}

	return nil
}

// UpstreamOAuthConfigured reports whether client credentials are set.
func (c *Config) UpstreamOAuthConfigured() bool {
	return c.Upstream.OAuthClientID != "" && c.Upstream.OAuthClientSecret != "" && c.Upstream.OAuthTokenURL != ""
}

// Location resolves the configured alert time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sync.TimeZone)
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

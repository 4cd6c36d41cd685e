package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Write path
	SubmitTimeout time.Duration
	UploadTimeout time.Duration

	// Live queries
	PollInterval time.Duration

	// Aggregation. All month and year windows are computed in this zone.
	CanonicalTimezone string

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseBucket     string
	UseSupabase        bool

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Dev mode
	DevAuth bool // DEV_AUTH=true enables the local token minting endpoint
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		SubmitTimeout: getEnvDuration("SUBMIT_TIMEOUT", 15*time.Second),
		UploadTimeout: getEnvDuration("UPLOAD_TIMEOUT", 30*time.Second),

		PollInterval: getEnvDuration("POLL_INTERVAL", 3*time.Second),

		CanonicalTimezone: getEnv("CANONICAL_TIMEZONE", "UTC"),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 30*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_STORAGE_BUCKET", "receipts"),
		UseSupabase:        getEnv("USE_SUPABASE", "true") == "true",

		JWTSecret:    getEnv("JWT_SECRET", "finguard-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),

		DevAuth: getEnv("DEV_AUTH", "false") == "true",
	}
}

// Timezone resolves the canonical zone. An unknown zone name falls back to
// UTC with a warning instead of refusing to start.
func (c *Config) Timezone(logger *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(c.CanonicalTimezone)
	if err != nil {
		logger.Warn("unknown canonical timezone, falling back to UTC",
			zap.String("timezone", c.CanonicalTimezone),
			zap.Error(err),
		)
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

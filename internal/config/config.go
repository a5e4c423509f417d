package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreSupabase = "supabase"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Stores
	StoreBackend string
	SQLitePath   string
	DatabaseURL  string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Pix generation
	StoreTimeout     time.Duration // boleto fetch deadline
	LedgerTimeout    time.Duration
	PixCodeTTL       time.Duration
	ReuseActiveCode  bool
	Timezone         string
	QRCodeSize       int
	MerchantCacheTTL time.Duration

	// Cache
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	OTLPEndpoint    string
	AlertWebhookURL string // lost ledger entries are posted here when set

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// JWT / Auth
	JWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
		SQLitePath:   getEnv("SQLITE_PATH", "boletopix.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		LedgerTimeout:    getEnvDuration("LEDGER_TIMEOUT", 2*time.Second),
		PixCodeTTL:       getEnvDuration("PIX_CODE_TTL", 30*time.Minute),
		ReuseActiveCode:  getEnvBool("PIX_REUSE_ACTIVE_CODE", false),
		Timezone:         getEnv("TIMEZONE", "America/Sao_Paulo"),
		QRCodeSize:       getEnvInt("QRCODE_SIZE", 256),
		MerchantCacheTTL: getEnvDuration("MERCHANT_CACHE_TTL", 5*time.Minute),

		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", "boletopix-default-dev-secret-change-me"),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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

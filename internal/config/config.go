package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBSlowQueryMillis int

	Redis RedisConfig

	Autosave AutosaveConfig
	Dedup    DedupConfig
	Retry    RetryConfig
	Cache    CacheConfig

	PricingRulesPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type AutosaveConfig struct {
	Debounce time.Duration
}

type DedupConfig struct {
	Window time.Duration
}

type RetryConfig struct {
	MaxAttempts     int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "vendorhub"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "vendorhub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBSlowQueryMillis: getenvInt("DATABASE_SLOW_QUERY_MS", 200),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
			LockTTL:  getenvMillis("SAVE_LOCK_TTL_MS", 10*time.Second),
		},
		Autosave: AutosaveConfig{
			Debounce: getenvMillis("AUTOSAVE_DEBOUNCE_MS", 600*time.Millisecond),
		},
		Dedup: DedupConfig{
			Window: getenvMillis("DEDUP_WINDOW_MS", 5*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:     getenvInt("RETRY_MAX_ATTEMPTS", 3),
			AttemptTimeout:  getenvMillis("RETRY_ATTEMPT_TIMEOUT_MS", 5*time.Second),
			InitialInterval: getenvMillis("RETRY_INITIAL_INTERVAL_MS", 200*time.Millisecond),
			MaxInterval:     getenvMillis("RETRY_MAX_INTERVAL_MS", 2*time.Second),
		},
		Cache: CacheConfig{
			Size: getenvInt("CACHE_SIZE", 512),
			TTL:  time.Duration(getenvInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		PricingRulesPath: strings.TrimSpace(getenv("PRICING_RULES_PATH", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvMillis(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return time.Duration(parsed) * time.Millisecond
}
